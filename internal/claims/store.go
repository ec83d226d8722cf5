// Package claims holds per-agent private participation records. Claims are
// append-only for the lifetime of the ledger and are never linked into the
// shared graph; every read path is scoped to the calling owner, and no
// global index over private claims exists anywhere in the node.
package claims

import (
	"context"
	"time"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// Filter narrows an owner's claim listing. Zero-value fields match
// everything; Limit of zero means no limit.
type Filter struct {
	Type  domain.ClaimType
	From  time.Time
	To    time.Time
	Limit int
}

func (f Filter) matches(c domain.ParticipationClaim) bool {
	if f.Type != "" && c.ClaimType != f.Type {
		return false
	}
	if !f.From.IsZero() && c.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && c.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// Store is the private claim store contract. PutPair writes both sides of
// an interaction in one call so no reader ever observes a lone claim.
type Store interface {
	PutPair(ctx context.Context, a, b domain.ParticipationClaim) error
	Get(ctx context.Context, owner domain.AgentID, claimID string) (domain.ParticipationClaim, error)
	ListOwned(ctx context.Context, owner domain.AgentID, f Filter) ([]domain.ParticipationClaim, error)
	AttachCounterSignature(ctx context.Context, owner domain.AgentID, claimID string, sig domain.Signature) error
}
