// Package ledger maintains the publicly replicated commitment/event graph:
// Commitment (intent) -> EconomicEvent (consummated action) linked by a
// fulfills reference. Append-only and content-addressed by prefixed IDs;
// fulfill-once per commitment is the safety net against read-then-write
// races across replicas.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// ProposeParams carries the caller-supplied fields of a new commitment.
type ProposeParams struct {
	Action      domain.Action
	Provider    domain.AgentID
	Receiver    domain.AgentID
	ResourceRef string
	DueDate     time.Time
	Note        string
}

// ProposeCommitment publishes an intent. The commitment is immutable once
// published; later claims reference it, never mutate it.
func (l *Ledger) ProposeCommitment(ctx context.Context, p ProposeParams) (domain.Commitment, error) {
	if p.Provider == "" || p.Receiver == "" {
		return domain.Commitment{}, domain.NewValidationError("commitment requires provider and receiver", "")
	}
	if _, ok := domainActionOK(p.Action); !ok {
		return domain.Commitment{}, domain.NewValidationError(fmt.Sprintf("unknown action %q", p.Action), "use one of the documented action kinds")
	}
	c := domain.Commitment{
		ID:          domain.NewCommitmentID(),
		Action:      p.Action,
		Provider:    p.Provider,
		Receiver:    p.Receiver,
		ResourceRef: p.ResourceRef,
		DueDate:     p.DueDate,
		Note:        p.Note,
		CommittedAt: time.Now().UTC(),
		State:       domain.CommitmentProposed,
	}
	if err := l.store.PutCommitment(ctx, c); err != nil {
		return domain.Commitment{}, err
	}
	return c, nil
}

func domainActionOK(a domain.Action) (domain.Action, bool) {
	parsed, err := domain.ParseAction(string(a))
	return parsed, err == nil
}

// AcceptCommitment moves a commitment from Proposed to Accepted.
func (l *Ledger) AcceptCommitment(ctx context.Context, id string) error {
	return l.store.SetCommitmentState(ctx, id, domain.CommitmentProposed, domain.CommitmentAccepted)
}

// LogEventParams carries the caller-supplied fields of a new event.
type LogEventParams struct {
	Action      domain.Action
	Provider    domain.AgentID
	Receiver    domain.AgentID
	ResourceRef string
	Quantity    domain.Quantity
	Note        string
	Fulfills    string
}

// LogEvent appends a consummated action. When Fulfills names a commitment,
// the fulfillment mark and the event append happen as one atomic store
// step; a commitment can be fulfilled at most once, so a second attempt
// fails with an integrity error and no event is appended.
func (l *Ledger) LogEvent(ctx context.Context, p LogEventParams) (domain.EconomicEvent, error) {
	if _, ok := domainActionOK(p.Action); !ok {
		return domain.EconomicEvent{}, domain.NewValidationError(fmt.Sprintf("unknown action %q", p.Action), "use one of the documented action kinds")
	}
	e := domain.EconomicEvent{
		ID:          domain.NewEventID(),
		Action:      p.Action,
		Provider:    p.Provider,
		Receiver:    p.Receiver,
		ResourceRef: p.ResourceRef,
		Quantity:    p.Quantity,
		Note:        p.Note,
		EventTime:   time.Now().UTC(),
		Fulfills:    p.Fulfills,
	}
	if err := l.append(ctx, e); err != nil {
		return domain.EconomicEvent{}, err
	}
	return e, nil
}

func (l *Ledger) append(ctx context.Context, e domain.EconomicEvent) error {
	if e.Fulfills == "" {
		return l.store.AppendEvent(ctx, e)
	}
	return l.store.FulfillAndAppend(ctx, e)
}

// GetCommitment resolves a commitment reference.
func (l *Ledger) GetCommitment(ctx context.Context, id string) (domain.Commitment, error) {
	return l.store.GetCommitment(ctx, id)
}

// GetEvent resolves an event reference.
func (l *Ledger) GetEvent(ctx context.Context, id string) (domain.EconomicEvent, error) {
	return l.store.GetEvent(ctx, id)
}

// ListEvents returns events touching a resource, oldest first.
func (l *Ledger) ListEvents(ctx context.Context, resourceRef string) ([]domain.EconomicEvent, error) {
	return l.store.ListEvents(ctx, resourceRef)
}

// ApplyRemoteCommitment applies a replicated commitment. Idempotent on
// commitment identity: an entry already present is left untouched.
func (l *Ledger) ApplyRemoteCommitment(ctx context.Context, c domain.Commitment) error {
	if _, err := l.store.GetCommitment(ctx, c.ID); err == nil {
		return nil
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return err
	}
	return l.store.PutCommitment(ctx, c)
}

// ApplyRemoteEvent applies a replicated event through the same
// fulfill-once path as locally logged events, so late-arriving duplicate
// fulfillments of one commitment are rejected here too.
func (l *Ledger) ApplyRemoteEvent(ctx context.Context, e domain.EconomicEvent) error {
	if _, err := l.store.GetEvent(ctx, e.ID); err == nil {
		return nil
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return err
	}
	return l.append(ctx, e)
}
