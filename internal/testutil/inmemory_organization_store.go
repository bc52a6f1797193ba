package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/rxledger/statements/internal/domain/organization"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/types"
	"github.com/samber/lo"
)

var _ organization.Repository = (*InMemoryOrganizationStore)(nil)

// InMemoryOrganizationStore implements organization.Repository
type InMemoryOrganizationStore struct {
	*InMemoryStore[*organization.Organization]
	mu    sync.RWMutex
	wards map[int64]*organization.Ward
}

func NewInMemoryOrganizationStore() *InMemoryOrganizationStore {
	return &InMemoryOrganizationStore{
		InMemoryStore: NewInMemoryStore[*organization.Organization](),
		wards:         make(map[int64]*organization.Ward),
	}
}

// AddOrganization seeds an active organization
func (s *InMemoryOrganizationStore) AddOrganization(ctx context.Context, org *organization.Organization) *organization.Organization {
	if org.Status == "" {
		org.BaseModel = types.GetDefaultBaseModel(ctx)
	}
	_ = s.InMemoryStore.Create(ctx, org.ID, org)
	return org
}

// AddWard seeds an active ward
func (s *InMemoryOrganizationStore) AddWard(ctx context.Context, w *organization.Ward) *organization.Ward {
	if w.Status == "" {
		w.BaseModel = types.GetDefaultBaseModel(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wards[w.ID] = w
	return w
}

func (s *InMemoryOrganizationStore) Get(ctx context.Context, id int64) (*organization.Organization, error) {
	org, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || org.IsDeleted() {
		return nil, ierr.NewErrorf("organization %d not found", id).
			WithHint("Organization not found").
			Mark(ierr.ErrNotFound)
	}
	c := *org
	return &c, nil
}

func (s *InMemoryOrganizationStore) GetByExternalID(ctx context.Context, externalID string) (*organization.Organization, error) {
	items, err := s.InMemoryStore.List(ctx, nil, func(_ context.Context, o *organization.Organization, _ interface{}) bool {
		return !o.IsDeleted() && o.ExternalID == externalID
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.NewErrorf("organization %s not found", externalID).
			WithHint("Organization not found").
			Mark(ierr.ErrNotFound)
	}
	c := *items[0]
	return &c, nil
}

func (s *InMemoryOrganizationStore) ListActive(ctx context.Context) ([]*organization.Organization, error) {
	return s.InMemoryStore.List(ctx, nil, func(_ context.Context, o *organization.Organization, _ interface{}) bool {
		return !o.IsDeleted()
	}, func(a, b *organization.Organization) bool {
		return a.ID < b.ID
	})
}

func (s *InMemoryOrganizationStore) ListWards(ctx context.Context, organizationID int64) ([]*organization.Ward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wards := lo.Filter(lo.Values(s.wards), func(w *organization.Ward, _ int) bool {
		return w.OrganizationID == organizationID && !w.IsDeleted()
	})
	sort.Slice(wards, func(i, j int) bool { return wards[i].ID < wards[j].ID })
	return wards, nil
}

func (s *InMemoryOrganizationStore) Clear() {
	s.InMemoryStore.Clear()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wards = make(map[int64]*organization.Ward)
}
