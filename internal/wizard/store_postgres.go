package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgDB is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and
// pgx.Tx, so integration tests can run inside a rolled-back transaction.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresClaimStore persists submitted claims. The itinerary snapshot is
// stored as JSONB: claims are written once at submission and read whole, so
// there is nothing to normalize into columns.
type PostgresClaimStore struct {
	db pgDB
}

func NewPostgresClaimStore(db pgDB) *PostgresClaimStore {
	return &PostgresClaimStore{db: db}
}

// Schema creates the claims table. Called at startup; harmless when the
// table already exists.
const Schema = `
CREATE TABLE IF NOT EXISTS claims (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	snapshot     JSONB NOT NULL,
	amount       DOUBLE PRECISION,
	submitted_at TIMESTAMPTZ NOT NULL
)`

func (s *PostgresClaimStore) Init(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create claims table: %w", err)
	}
	return nil
}

func (s *PostgresClaimStore) Save(ctx context.Context, claim Claim) error {
	snapshot, err := json.Marshal(claim.Snapshot)
	if err != nil {
		return fmt.Errorf("encode claim snapshot: %w", err)
	}
	const q = `
		INSERT INTO claims (id, session_id, snapshot, amount, submitted_at)
		VALUES (@id, @session_id, @snapshot, @amount, @submitted_at)`
	_, err = s.db.Exec(ctx, q, pgx.NamedArgs{
		"id":           claim.ID,
		"session_id":   claim.SessionID,
		"snapshot":     snapshot,
		"amount":       claim.Amount,
		"submitted_at": claim.SubmittedAt,
	})
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (s *PostgresClaimStore) FindByID(ctx context.Context, id string) (Claim, error) {
	const q = `
		SELECT id, session_id, snapshot, amount, submitted_at
		FROM claims WHERE id = @id`

	var claim Claim
	var snapshot []byte
	row := s.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	if err := row.Scan(&claim.ID, &claim.SessionID, &snapshot, &claim.Amount, &claim.SubmittedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, ErrNotFound
		}
		return Claim{}, fmt.Errorf("find claim: %w", err)
	}
	if err := json.Unmarshal(snapshot, &claim.Snapshot); err != nil {
		return Claim{}, fmt.Errorf("decode claim snapshot: %w", err)
	}
	return claim, nil
}
