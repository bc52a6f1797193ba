package sentry

import (
	"errors"
	"testing"
	"time"

	"github.com/rxledger/statements/internal/config"
	"github.com/rxledger/statements/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestDisabledServiceIsNoop(t *testing.T) {
	svc := NewSentryService(config.GetDefaultConfig(), logger.NewNopLogger())
	assert.False(t, svc.Enabled())

	svc.CaptureException(errors.New("boom"))
	svc.CaptureWithTags(errors.New("boom"), map[string]string{"run_id": "run_1"})
	svc.AddBreadcrumb("statements", "processing", nil)
	assert.True(t, svc.Flush(time.Second))
}

func TestNilServiceIsNoop(t *testing.T) {
	var svc *Service
	assert.False(t, svc.Enabled())
	svc.CaptureException(errors.New("boom"))
}
