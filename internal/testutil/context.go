package testutil

import (
	"context"

	"github.com/rxledger/statements/internal/types"
)

// SetupContext returns a context carrying a request id and the system user,
// as background passes see it
func SetupContext() context.Context {
	ctx := types.SetUserID(context.Background(), types.DefaultUserID)
	return context.WithValue(ctx, types.CtxRequestID, types.GenerateUUIDWithPrefix("req"))
}
