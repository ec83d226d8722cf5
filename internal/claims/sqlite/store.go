// Package sqlite provides the SQLite-backed private claim store, one
// database file per agent node.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Sensorica/nondominium-sub002/internal/claims"
	"github.com/Sensorica/nondominium-sub002/internal/claims/sqlite/migrations"
	"github.com/Sensorica/nondominium-sub002/internal/storage/sqlitemigrate"
	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

type Store struct {
	sqlDB *sql.DB
}

// Open opens the claim store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("claim store path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) PutPair(ctx context.Context, a, b domain.ParticipationClaim) error {
	if a.Owner == "" || b.Owner == "" {
		return domain.NewValidationError("claim owner is required", "")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, c := range []domain.ParticipationClaim{a, b} {
		if err := insertClaim(ctx, tx, c); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit claim pair: %w", err)
	}
	return nil
}

func insertClaim(ctx context.Context, tx *sql.Tx, c domain.ParticipationClaim) error {
	metricsJSON, err := json.Marshal(c.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	var sigJSON, counterJSON any
	if c.Signature != nil {
		b, err := json.Marshal(c.Signature)
		if err != nil {
			return fmt.Errorf("encode signature: %w", err)
		}
		sigJSON = string(b)
	}
	if c.CounterSig != nil {
		b, err := json.Marshal(c.CounterSig)
		if err != nil {
			return fmt.Errorf("encode counter signature: %w", err)
		}
		counterJSON = string(b)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO participation_claims
    (claim_id, owner, claim_type, counterparty, fulfills, fulfilled_by, resource_ref, metrics, note, created_at, signature, counter_signature)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Owner), string(c.ClaimType), string(c.Counterparty),
		c.Fulfills, c.FulfilledBy, c.ResourceRef, string(metricsJSON), c.Note,
		c.CreatedAt.UTC().UnixNano(), sigJSON, counterJSON)
	if err != nil {
		return fmt.Errorf("insert claim %s: %w", c.ID, err)
	}
	return nil
}

const claimColumns = `claim_id, owner, claim_type, counterparty, fulfills, fulfilled_by, resource_ref, metrics, note, created_at, signature, counter_signature`

func (s *Store) Get(ctx context.Context, owner domain.AgentID, claimID string) (domain.ParticipationClaim, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM participation_claims WHERE owner = ? AND claim_id = ?`,
		string(owner), claimID)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return domain.ParticipationClaim{}, domain.NewNotFoundError(fmt.Sprintf("claim %s not found for owner", claimID))
	}
	if err != nil {
		return domain.ParticipationClaim{}, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

func (s *Store) ListOwned(ctx context.Context, owner domain.AgentID, f claims.Filter) ([]domain.ParticipationClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM participation_claims WHERE owner = ?`
	args := []any{string(owner)}
	if f.Type != "" {
		query += ` AND claim_type = ?`
		args = append(args, string(f.Type))
	}
	if !f.From.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, f.From.UTC().UnixNano())
	}
	if !f.To.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, f.To.UTC().UnixNano())
	}
	query += ` ORDER BY created_at ASC, claim_id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()
	var out []domain.ParticipationClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) AttachCounterSignature(ctx context.Context, owner domain.AgentID, claimID string, sig domain.Signature) error {
	b, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode counter signature: %w", err)
	}
	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE participation_claims SET counter_signature = ?
WHERE owner = ? AND claim_id = ? AND counter_signature IS NULL`,
		string(b), string(owner), claimID)
	if err != nil {
		return fmt.Errorf("attach counter signature: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach counter signature: %w", err)
	}
	if n == 1 {
		return nil
	}
	// Distinguish already-signed from missing.
	if _, err := s.Get(ctx, owner, claimID); err != nil {
		return err
	}
	return domain.NewIntegrityError(fmt.Sprintf("claim %s already counter-signed", claimID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (domain.ParticipationClaim, error) {
	var c domain.ParticipationClaim
	var owner, claimType, counterparty, metricsJSON string
	var createdAt int64
	var sigJSON, counterJSON sql.NullString
	err := row.Scan(&c.ID, &owner, &claimType, &counterparty, &c.Fulfills, &c.FulfilledBy,
		&c.ResourceRef, &metricsJSON, &c.Note, &createdAt, &sigJSON, &counterJSON)
	if err != nil {
		return domain.ParticipationClaim{}, err
	}
	c.Owner = domain.AgentID(owner)
	c.ClaimType = domain.ClaimType(claimType)
	c.Counterparty = domain.AgentID(counterparty)
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(metricsJSON), &c.Metrics); err != nil {
		return domain.ParticipationClaim{}, fmt.Errorf("decode metrics: %w", err)
	}
	if sigJSON.Valid {
		var sig domain.Signature
		if err := json.Unmarshal([]byte(sigJSON.String), &sig); err != nil {
			return domain.ParticipationClaim{}, fmt.Errorf("decode signature: %w", err)
		}
		c.Signature = &sig
	}
	if counterJSON.Valid {
		var sig domain.Signature
		if err := json.Unmarshal([]byte(counterJSON.String), &sig); err != nil {
			return domain.ParticipationClaim{}, fmt.Errorf("decode counter signature: %w", err)
		}
		c.CounterSig = &sig
	}
	return c, nil
}
