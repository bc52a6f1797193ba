package testutil

import (
	"context"

	"github.com/rxledger/statements/internal/email"
	"github.com/stretchr/testify/mock"
)

var _ email.Sender = (*MockEmailSender)(nil)

type MockEmailSender struct {
	mock.Mock
}

func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{}
}

// SendStatement implements email.Sender
func (m *MockEmailSender) SendStatement(ctx context.Context, req *email.StatementEmail) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
