// Package ledger persists batch transfer reports so runs can be audited after
// the fact. It is optional; NopRecorder stands in when no database is set up.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andresuchdata/cloudmigrate/internal/transfer"
)

// Run describes one recorded batch.
type Run struct {
	ID         int64     `db:"id" json:"id"`
	Mode       string    `db:"mode" json:"mode"`
	Backend    string    `db:"backend" json:"backend"`
	Bucket     string    `db:"bucket" json:"bucket"`
	Total      int       `db:"total" json:"total"`
	Succeeded  int       `db:"succeeded" json:"succeeded"`
	Failed     int       `db:"failed" json:"failed"`
	Bytes      int64     `db:"bytes" json:"bytes"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
}

// RunMeta identifies the batch a report belongs to.
type RunMeta struct {
	Mode    string
	Backend string
	Bucket  string
}

// Recorder stores batch reports and lists recent runs.
type Recorder interface {
	RecordReport(ctx context.Context, meta RunMeta, report *transfer.Report) (int64, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Store is the Postgres-backed Recorder.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// RecordReport inserts the run header and all outcomes in one transaction and
// returns the new run id.
func (s *Store) RecordReport(ctx context.Context, meta RunMeta, report *transfer.Report) (int64, error) {
	var runID int64

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO transfer_runs (
				mode, backend, bucket, total, succeeded,
				failed, bytes, started_at, duration_ms
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`
		if err := tx.QueryRowxContext(
			ctx, query,
			meta.Mode, meta.Backend, meta.Bucket, report.Total, report.Succeeded,
			report.Failed, report.Bytes(), report.StartedAt, report.Duration.Milliseconds(),
		).Scan(&runID); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		if len(report.Outcomes) == 0 {
			return nil
		}

		cols := outcomeColumns(report.Outcomes)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transfer_outcomes (
				run_id, position, source, destination, status,
				bytes, elapsed_ms, error, kind
			)
			SELECT $1, * FROM unnest(
				$2::int[], $3::text[], $4::text[], $5::text[],
				$6::bigint[], $7::bigint[], $8::text[], $9::text[]
			)
		`,
			runID,
			pq.Array(cols.positions), pq.Array(cols.sources), pq.Array(cols.destinations), pq.Array(cols.statuses),
			pq.Array(cols.bytes), pq.Array(cols.elapsed), pq.Array(cols.errors), pq.Array(cols.kinds),
		)
		if err != nil {
			return fmt.Errorf("insert outcomes: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	runs := []Run{}
	err := s.db.SelectContext(ctx, &runs, `
		SELECT id, mode, backend, bucket, total, succeeded,
		       failed, bytes, started_at, duration_ms
		FROM transfer_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

type outcomeColumnSet struct {
	positions    []int64
	sources      []string
	destinations []string
	statuses     []string
	bytes        []int64
	elapsed      []int64
	errors       []string
	kinds        []string
}

func outcomeColumns(outcomes []transfer.Outcome) outcomeColumnSet {
	n := len(outcomes)
	cols := outcomeColumnSet{
		positions:    make([]int64, n),
		sources:      make([]string, n),
		destinations: make([]string, n),
		statuses:     make([]string, n),
		bytes:        make([]int64, n),
		elapsed:      make([]int64, n),
		errors:       make([]string, n),
		kinds:        make([]string, n),
	}
	for i, o := range outcomes {
		cols.positions[i] = int64(o.Index)
		cols.sources[i] = o.Source
		cols.destinations[i] = o.Destination
		cols.statuses[i] = string(o.Status)
		cols.bytes[i] = o.Bytes
		cols.elapsed[i] = o.Elapsed.Milliseconds()
		cols.errors[i] = o.Error
		cols.kinds[i] = string(o.Kind)
	}
	return cols
}

// NopRecorder discards reports.
type NopRecorder struct{}

func (NopRecorder) RecordReport(context.Context, RunMeta, *transfer.Report) (int64, error) {
	return 0, nil
}

// ListRuns always fails with ErrDisabled; there is nothing to list.
func (NopRecorder) ListRuns(context.Context, int) ([]Run, error) {
	return nil, ErrDisabled
}

// ErrDisabled reports that no ledger database is configured.
var ErrDisabled = errors.New("ledger: disabled")
