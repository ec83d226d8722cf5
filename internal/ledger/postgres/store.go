// Package postgres persists the ledger replica in Postgres. Schema:
//
//	CREATE TABLE commitments (
//	    commitment_id TEXT PRIMARY KEY,
//	    action TEXT NOT NULL,
//	    provider TEXT NOT NULL,
//	    receiver TEXT NOT NULL,
//	    resource_ref TEXT NOT NULL DEFAULT '',
//	    due_date TIMESTAMPTZ NOT NULL,
//	    note TEXT NOT NULL DEFAULT '',
//	    committed_at TIMESTAMPTZ NOT NULL,
//	    state TEXT NOT NULL
//	);
//	CREATE TABLE economic_events (
//	    event_id TEXT PRIMARY KEY,
//	    action TEXT NOT NULL,
//	    provider TEXT NOT NULL,
//	    receiver TEXT NOT NULL,
//	    resource_ref TEXT NOT NULL DEFAULT '',
//	    quantity_value DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    quantity_unit TEXT NOT NULL DEFAULT '',
//	    note TEXT NOT NULL DEFAULT '',
//	    event_time TIMESTAMPTZ NOT NULL,
//	    fulfills TEXT NOT NULL DEFAULT ''
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) PutCommitment(ctx context.Context, c domain.Commitment) error {
	tag, err := s.DB.Exec(ctx, `
INSERT INTO commitments(commitment_id,action,provider,receiver,resource_ref,due_date,note,committed_at,state)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (commitment_id) DO NOTHING`,
		c.ID, string(c.Action), string(c.Provider), string(c.Receiver),
		c.ResourceRef, c.DueDate, c.Note, c.CommittedAt, string(c.State))
	if err != nil {
		return fmt.Errorf("insert commitment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewIntegrityError(fmt.Sprintf("commitment %s already recorded", c.ID))
	}
	return nil
}

func (s *Store) GetCommitment(ctx context.Context, id string) (domain.Commitment, error) {
	var c domain.Commitment
	var action, provider, receiver, state string
	err := s.DB.QueryRow(ctx, `
SELECT commitment_id,action,provider,receiver,resource_ref,due_date,note,committed_at,state
FROM commitments WHERE commitment_id=$1`, id).
		Scan(&c.ID, &action, &provider, &receiver, &c.ResourceRef, &c.DueDate, &c.Note, &c.CommittedAt, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Commitment{}, domain.NewNotFoundError(fmt.Sprintf("commitment %s not found", id))
	}
	if err != nil {
		return domain.Commitment{}, fmt.Errorf("get commitment: %w", err)
	}
	c.Action = domain.Action(action)
	c.Provider = domain.AgentID(provider)
	c.Receiver = domain.AgentID(receiver)
	c.State = domain.CommitmentState(state)
	return c, nil
}

// SetCommitmentState performs the conditional transition. The WHERE clause
// on the expected source state is what makes duplicate fulfillment a
// detected conflict instead of a silent overwrite.
func (s *Store) SetCommitmentState(ctx context.Context, id string, from, to domain.CommitmentState) error {
	tag, err := s.DB.Exec(ctx,
		`UPDATE commitments SET state=$1 WHERE commitment_id=$2 AND state=$3`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("set commitment state: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	c, err := s.GetCommitment(ctx, id)
	if err != nil {
		return err
	}
	if to == domain.CommitmentFulfilled && c.State == domain.CommitmentFulfilled {
		return domain.NewIntegrityError(fmt.Sprintf("commitment %s already fulfilled", id))
	}
	return domain.NewIntegrityError(fmt.Sprintf("commitment %s is %s, expected %s", id, c.State, from))
}

func (s *Store) AppendEvent(ctx context.Context, e domain.EconomicEvent) error {
	tag, err := s.DB.Exec(ctx, `
INSERT INTO economic_events(event_id,action,provider,receiver,resource_ref,quantity_value,quantity_unit,note,event_time,fulfills)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (event_id) DO NOTHING`,
		e.ID, string(e.Action), string(e.Provider), string(e.Receiver), e.ResourceRef,
		e.Quantity.Value, e.Quantity.Unit, e.Note, e.EventTime, e.Fulfills)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewIntegrityError(fmt.Sprintf("event %s already recorded", e.ID))
	}
	return nil
}

// FulfillAndAppend runs the conditional commitment transition and the event
// insert in one transaction, so an insert failure rolls the commitment
// back instead of stranding it fulfilled without an event.
func (s *Store) FulfillAndAppend(ctx context.Context, e domain.EconomicEvent) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin fulfill: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE commitments SET state=$1 WHERE commitment_id=$2 AND state<>$1`,
		string(domain.CommitmentFulfilled), e.Fulfills)
	if err != nil {
		return fmt.Errorf("fulfill commitment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		c, err := s.GetCommitment(ctx, e.Fulfills)
		if err != nil {
			return err
		}
		if c.State == domain.CommitmentFulfilled {
			return domain.NewIntegrityError(fmt.Sprintf("commitment %s already fulfilled", e.Fulfills))
		}
		return domain.NewIntegrityError(fmt.Sprintf("commitment %s is %s, cannot fulfill", e.Fulfills, c.State))
	}

	tag, err = tx.Exec(ctx, `
INSERT INTO economic_events(event_id,action,provider,receiver,resource_ref,quantity_value,quantity_unit,note,event_time,fulfills)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (event_id) DO NOTHING`,
		e.ID, string(e.Action), string(e.Provider), string(e.Receiver), e.ResourceRef,
		e.Quantity.Value, e.Quantity.Unit, e.Note, e.EventTime, e.Fulfills)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewIntegrityError(fmt.Sprintf("event %s already recorded", e.ID))
	}
	return tx.Commit(ctx)
}

func (s *Store) GetEvent(ctx context.Context, id string) (domain.EconomicEvent, error) {
	var e domain.EconomicEvent
	var action, provider, receiver string
	err := s.DB.QueryRow(ctx, `
SELECT event_id,action,provider,receiver,resource_ref,quantity_value,quantity_unit,note,event_time,fulfills
FROM economic_events WHERE event_id=$1`, id).
		Scan(&e.ID, &action, &provider, &receiver, &e.ResourceRef,
			&e.Quantity.Value, &e.Quantity.Unit, &e.Note, &e.EventTime, &e.Fulfills)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EconomicEvent{}, domain.NewNotFoundError(fmt.Sprintf("event %s not found", id))
	}
	if err != nil {
		return domain.EconomicEvent{}, fmt.Errorf("get event: %w", err)
	}
	e.Action = domain.Action(action)
	e.Provider = domain.AgentID(provider)
	e.Receiver = domain.AgentID(receiver)
	return e, nil
}

func (s *Store) ListEvents(ctx context.Context, resourceRef string) ([]domain.EconomicEvent, error) {
	query := `
SELECT event_id,action,provider,receiver,resource_ref,quantity_value,quantity_unit,note,event_time,fulfills
FROM economic_events`
	args := []any{}
	if resourceRef != "" {
		query += ` WHERE resource_ref=$1`
		args = append(args, resourceRef)
	}
	query += ` ORDER BY event_time ASC, event_id ASC`

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var out []domain.EconomicEvent
	for rows.Next() {
		var e domain.EconomicEvent
		var action, provider, receiver string
		if err := rows.Scan(&e.ID, &action, &provider, &receiver, &e.ResourceRef,
			&e.Quantity.Value, &e.Quantity.Unit, &e.Note, &e.EventTime, &e.Fulfills); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Action = domain.Action(action)
		e.Provider = domain.AgentID(provider)
		e.Receiver = domain.AgentID(receiver)
		out = append(out, e)
	}
	return out, rows.Err()
}
