package scheduler

import (
	"context"

	"github.com/rxledger/statements/internal/api/dto"
	"github.com/rxledger/statements/internal/service"
)

// lockedProcessor runs passes under the run lock, so passes started outside
// the runner, such as the one following an intake, respect other instances
type lockedProcessor struct {
	service.StatementProcessor
	lock RunLock
}

// NewLockedProcessor wraps processor so every pass holds lock
func NewLockedProcessor(processor service.StatementProcessor, lock RunLock) service.StatementProcessor {
	return &lockedProcessor{StatementProcessor: processor, lock: lock}
}

func (p *lockedProcessor) ProcessPending(ctx context.Context) (*dto.ProcessPendingResponse, error) {
	release, err := p.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))
	return p.StatementProcessor.ProcessPending(ctx)
}
