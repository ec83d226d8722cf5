package claims

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// MemoryStore keeps claims in per-owner append-only slices. Default
// backend for tests and single-process nodes.
type MemoryStore struct {
	mu      sync.Mutex
	byOwner map[domain.AgentID][]domain.ParticipationClaim
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byOwner: map[domain.AgentID][]domain.ParticipationClaim{}}
}

func (s *MemoryStore) PutPair(ctx context.Context, a, b domain.ParticipationClaim) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.Owner == "" || b.Owner == "" {
		return domain.NewValidationError("claim owner is required", "")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOwner[a.Owner] = append(s.byOwner[a.Owner], a)
	s.byOwner[b.Owner] = append(s.byOwner[b.Owner], b)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, owner domain.AgentID, claimID string) (domain.ParticipationClaim, error) {
	if err := ctx.Err(); err != nil {
		return domain.ParticipationClaim{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.byOwner[owner] {
		if c.ID == claimID {
			return c, nil
		}
	}
	return domain.ParticipationClaim{}, domain.NewNotFoundError(fmt.Sprintf("claim %s not found for owner", claimID))
}

func (s *MemoryStore) ListOwned(ctx context.Context, owner domain.AgentID, f Filter) ([]domain.ParticipationClaim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ParticipationClaim
	for _, c := range s.byOwner[owner] {
		if f.matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) AttachCounterSignature(ctx context.Context, owner domain.AgentID, claimID string, sig domain.Signature) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := s.byOwner[owner]
	for i := range owned {
		if owned[i].ID == claimID {
			if owned[i].CounterSig != nil {
				return domain.NewIntegrityError(fmt.Sprintf("claim %s already counter-signed", claimID))
			}
			owned[i].CounterSig = &sig
			return nil
		}
	}
	return domain.NewNotFoundError(fmt.Sprintf("claim %s not found for owner", claimID))
}
