// Package checkpoint persists per-chain ingestion progress to Postgres:
// restart must resume from the last acknowledged block rather than
// replaying from START_BLOCK every time. Modeled on a repository pattern
// adapted from marketplace-order checkpoints to per-chain block-height
// checkpoints, with a *sql.DB wrapper shape suited to sqlmock-based tests.
package checkpoint

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository persists and loads the next block height to process per
// chain. Heights are stored as NUMERIC rather than a native integer type
// to avoid precision loss across the Postgres wire protocol.
type Repository struct {
	db *sql.DB
}

// Open connects to Postgres at dsn and ensures the checkpoints table
// exists.
func Open(dsn string) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("checkpoint: ping: %w", err)
	}
	r := &Repository{db: db}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

// migrate applies migrations/*.sql via golang-migrate, using an embed.FS +
// iofs source so the migration files ship inside the binary.
func (r *Repository) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("checkpoint: migration source: %w", err)
	}
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("checkpoint: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("checkpoint: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("checkpoint: migrate up: %w", err)
	}
	return nil
}

// GetNextBlock returns the stored next-block height for chainID, and
// false if no checkpoint exists yet (callers fall back to START_BLOCK).
func (r *Repository) GetNextBlock(ctx context.Context, chainID uint32) (uint64, bool, error) {
	var next uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT next_block FROM checkpoints WHERE chain_id = $1`, chainID,
	).Scan(&next)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("checkpoint: get: %w", err)
	}
	return next, true, nil
}

// SetNextBlock upserts the checkpoint for chainID.
func (r *Repository) SetNextBlock(ctx context.Context, chainID uint32, next uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkpoints (chain_id, next_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chain_id) DO UPDATE SET next_block = EXCLUDED.next_block, updated_at = now()
	`, chainID, next)
	if err != nil {
		return fmt.Errorf("checkpoint: set: %w", err)
	}
	return nil
}

// newWithDB builds a Repository directly from an existing *sql.DB, skipping
// migration — used to point a repository at a go-sqlmock database in
// tests without a real Postgres instance.
func newWithDB(db *sql.DB) *Repository { return &Repository{db: db} }

// HealthCheck reports whether the underlying connection is reachable.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error { return r.db.Close() }
