package ledger

import (
	"context"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// Store is the persistence contract for the public replicated graph.
// Commitments and events are append-only; the only permitted mutation is
// the commitment state transition, and marking a commitment fulfilled must
// be conditional on it not already being fulfilled so late-arriving
// duplicate fulfillment attempts are detected, not overwritten.
type Store interface {
	PutCommitment(ctx context.Context, c domain.Commitment) error
	GetCommitment(ctx context.Context, id string) (domain.Commitment, error)
	SetCommitmentState(ctx context.Context, id string, from, to domain.CommitmentState) error

	AppendEvent(ctx context.Context, e domain.EconomicEvent) error
	// FulfillAndAppend marks e.Fulfills fulfilled and appends e as one
	// atomic step. Either both writes land or neither does; a commitment
	// is never left fulfilled without its event.
	FulfillAndAppend(ctx context.Context, e domain.EconomicEvent) error
	GetEvent(ctx context.Context, id string) (domain.EconomicEvent, error)
	ListEvents(ctx context.Context, resourceRef string) ([]domain.EconomicEvent, error)
}
