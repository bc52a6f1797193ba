package testutil

import (
	"context"

	"github.com/rxledger/statements/internal/domain/patient"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/types"
)

var _ patient.Repository = (*InMemoryPatientStore)(nil)

// InMemoryPatientStore implements patient.Repository
type InMemoryPatientStore struct {
	*InMemoryStore[*patient.Patient]
}

func NewInMemoryPatientStore() *InMemoryPatientStore {
	return &InMemoryPatientStore{
		InMemoryStore: NewInMemoryStore[*patient.Patient](),
	}
}

// AddPatient seeds an active patient
func (s *InMemoryPatientStore) AddPatient(ctx context.Context, p *patient.Patient) *patient.Patient {
	if p.Status == "" {
		p.BaseModel = types.GetDefaultBaseModel(ctx)
	}
	_ = s.InMemoryStore.Create(ctx, p.ID, p)
	return p
}

func (s *InMemoryPatientStore) Get(ctx context.Context, id int64) (*patient.Patient, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || p.IsDeleted() {
		return nil, ierr.NewErrorf("patient %d not found", id).
			WithHint("Patient not found").
			Mark(ierr.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (s *InMemoryPatientStore) ListActive(ctx context.Context) ([]*patient.Patient, error) {
	return s.InMemoryStore.List(ctx, nil, func(_ context.Context, p *patient.Patient, _ interface{}) bool {
		return !p.IsDeleted()
	}, func(a, b *patient.Patient) bool {
		return a.ID < b.ID
	})
}
