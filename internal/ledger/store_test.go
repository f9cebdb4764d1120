package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/cloudmigrate/internal/storage"
	"github.com/andresuchdata/cloudmigrate/internal/transfer"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	return NewStore(wrap(sqlx.NewDb(raw, "pgx"))), mock
}

func sampleReport(start time.Time) *transfer.Report {
	return &transfer.Report{
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		StartedAt: start,
		Duration:  1500 * time.Millisecond,
		Outcomes: []transfer.Outcome{
			{Index: 0, Source: "a.csv", Destination: "a.csv", Status: transfer.StatusSuccess, Bytes: 5, Elapsed: time.Second},
			{Index: 1, Source: "b.csv", Destination: "b.csv", Status: transfer.StatusFailure, Error: "storage: not found", Kind: storage.KindNotFound},
		},
	}
}

func TestRecordReport(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO transfer_runs").
		WithArgs("migrate", "local", "bkt", 2, 1, 1, int64(5), start, int64(1500)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec("INSERT INTO transfer_outcomes").
		WithArgs(int64(7), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	id, err := store.RecordReport(context.Background(), RunMeta{Mode: "migrate", Backend: "local", Bucket: "bkt"}, sampleReport(start))

	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReport_RollsBackOnOutcomeFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO transfer_runs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("INSERT INTO transfer_outcomes").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := store.RecordReport(context.Background(), RunMeta{Mode: "migrate"}, sampleReport(time.Now()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert outcomes")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordReport_EmptyReportSkipsOutcomes(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO transfer_runs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	id, err := store.RecordReport(context.Background(), RunMeta{Mode: "download-all"}, &transfer.Report{StartedAt: time.Now()})

	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "mode", "backend", "bucket", "total", "succeeded",
		"failed", "bytes", "started_at", "duration_ms",
	}).AddRow(9, "migrate", "gcs", "bkt", 3, 3, 0, 1024, start, 250)
	mock.ExpectQuery("SELECT (.+) FROM transfer_runs").WithArgs(20).WillReturnRows(rows)

	runs, err := store.ListRuns(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, Run{
		ID: 9, Mode: "migrate", Backend: "gcs", Bucket: "bkt", Total: 3, Succeeded: 3,
		Bytes: 1024, StartedAt: start, DurationMS: 250,
	}, runs[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}

	id, err := r.RecordReport(context.Background(), RunMeta{}, &transfer.Report{})
	assert.NoError(t, err)
	assert.Zero(t, id)

	_, err = r.ListRuns(context.Background(), 5)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestOutcomeColumns(t *testing.T) {
	cols := outcomeColumns(sampleReport(time.Now()).Outcomes)

	assert.Equal(t, []int64{0, 1}, cols.positions)
	assert.Equal(t, []string{"success", "failure"}, cols.statuses)
	assert.Equal(t, []int64{1000, 0}, cols.elapsed)
	assert.Equal(t, []string{"", "not_found"}, cols.kinds)
}
