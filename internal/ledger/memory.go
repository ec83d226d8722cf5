package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// MemoryStore is the in-process ledger replica used by tests and
// single-node deployments.
type MemoryStore struct {
	mu          sync.Mutex
	commitments map[string]domain.Commitment
	events      map[string]domain.EconomicEvent
	eventOrder  []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		commitments: map[string]domain.Commitment{},
		events:      map[string]domain.EconomicEvent{},
	}
}

func (s *MemoryStore) PutCommitment(ctx context.Context, c domain.Commitment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.commitments[c.ID]; exists {
		return domain.NewIntegrityError(fmt.Sprintf("commitment %s already recorded", c.ID))
	}
	s.commitments[c.ID] = c
	return nil
}

func (s *MemoryStore) GetCommitment(ctx context.Context, id string) (domain.Commitment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Commitment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commitments[id]
	if !ok {
		return domain.Commitment{}, domain.NewNotFoundError(fmt.Sprintf("commitment %s not found", id))
	}
	return c, nil
}

func (s *MemoryStore) SetCommitmentState(ctx context.Context, id string, from, to domain.CommitmentState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commitments[id]
	if !ok {
		return domain.NewNotFoundError(fmt.Sprintf("commitment %s not found", id))
	}
	if c.State != from {
		if to == domain.CommitmentFulfilled && c.State == domain.CommitmentFulfilled {
			return domain.NewIntegrityError(fmt.Sprintf("commitment %s already fulfilled", id))
		}
		return domain.NewIntegrityError(fmt.Sprintf("commitment %s is %s, expected %s", id, c.State, from))
	}
	c.State = to
	s.commitments[id] = c
	return nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, e domain.EconomicEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[e.ID]; exists {
		return domain.NewIntegrityError(fmt.Sprintf("event %s already recorded", e.ID))
	}
	s.events[e.ID] = e
	s.eventOrder = append(s.eventOrder, e.ID)
	return nil
}

func (s *MemoryStore) FulfillAndAppend(ctx context.Context, e domain.EconomicEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commitments[e.Fulfills]
	if !ok {
		return domain.NewNotFoundError(fmt.Sprintf("commitment %s not found", e.Fulfills))
	}
	if c.State == domain.CommitmentFulfilled {
		return domain.NewIntegrityError(fmt.Sprintf("commitment %s already fulfilled", e.Fulfills))
	}
	if _, exists := s.events[e.ID]; exists {
		return domain.NewIntegrityError(fmt.Sprintf("event %s already recorded", e.ID))
	}
	c.State = domain.CommitmentFulfilled
	s.commitments[e.Fulfills] = c
	s.events[e.ID] = e
	s.eventOrder = append(s.eventOrder, e.ID)
	return nil
}

func (s *MemoryStore) GetEvent(ctx context.Context, id string) (domain.EconomicEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.EconomicEvent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return domain.EconomicEvent{}, domain.NewNotFoundError(fmt.Sprintf("event %s not found", id))
	}
	return e, nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, resourceRef string) ([]domain.EconomicEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EconomicEvent
	for _, id := range s.eventOrder {
		e := s.events[id]
		if resourceRef == "" || e.ResourceRef == resourceRef {
			out = append(out, e)
		}
	}
	return out, nil
}
