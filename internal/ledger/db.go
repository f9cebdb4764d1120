package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/cloudmigrate/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// DB is a pooled Postgres handle whose write transactions are throttled.
type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

// Open connects to Postgres through the pgx stdlib driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect ledger database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return wrap(db), nil
}

func wrap(db *sqlx.DB) *DB {
	return &DB{DB: db, sem: semaphore.NewWeighted(10)}
}

// WithTx executes fn within a transaction, rolling back when fn fails.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("ledger: could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS transfer_runs (
	id           BIGSERIAL PRIMARY KEY,
	mode         TEXT        NOT NULL,
	backend      TEXT        NOT NULL,
	bucket       TEXT        NOT NULL,
	total        INTEGER     NOT NULL,
	succeeded    INTEGER     NOT NULL,
	failed       INTEGER     NOT NULL,
	bytes        BIGINT      NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT      NOT NULL
);

CREATE TABLE IF NOT EXISTS transfer_outcomes (
	run_id       BIGINT  NOT NULL REFERENCES transfer_runs(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	source       TEXT    NOT NULL,
	destination  TEXT    NOT NULL,
	status       TEXT    NOT NULL,
	bytes        BIGINT  NOT NULL,
	elapsed_ms   BIGINT  NOT NULL,
	error        TEXT    NOT NULL DEFAULT '',
	kind         TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);
`

// Migrate creates the ledger tables when they are missing.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

// Setup returns a migrated Store when the ledger is enabled, otherwise a
// NopRecorder. The returned close func is always safe to call.
func Setup(ctx context.Context, cfg config.DatabaseConfig) (Recorder, func() error, error) {
	if !cfg.Enabled {
		return NopRecorder{}, func() error { return nil }, nil
	}

	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	log.Info().Str("db", cfg.DBName).Msg("ledger: connected")
	return NewStore(db), db.Close, nil
}
