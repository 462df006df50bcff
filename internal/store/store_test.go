// File: internal/store/store_test.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockedStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	store, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return store, mockPool
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("should create the runs table", func(t *testing.T) {
		store, mockPool := newMockedStore(t)

		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateRuns)).
			WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

		require.NoError(t, store.EnsureSchema(ctx))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate DDL failures", func(t *testing.T) {
		store, mockPool := newMockedStore(t)

		ddlErr := errors.New("permission denied")
		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateRuns)).WillReturnError(ddlErr)

		err := store.EnsureSchema(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ddlErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert a run record with UTC timestamps", func(t *testing.T) {
		store, mockPool := newMockedStore(t)

		loc, err := time.LoadLocation("America/New_York")
		require.NoError(t, err)
		startedLocal := time.Date(2026, 8, 20, 10, 0, 0, 0, loc)
		finishedLocal := startedLocal.Add(30 * time.Second)

		rec := &RunRecord{
			RunID:         uuid.NewString(),
			Goal:          "fetch price",
			Report:        json.RawMessage(`{"goal":"fetch price","extracted":{"price":"9.99"}}`),
			StepsTotal:    3,
			StepsExecuted: 3,
			Failed:        false,
			StartedAt:     startedLocal,
			FinishedAt:    finishedLocal,
		}

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(
				rec.RunID, rec.Goal, rec.Report,
				rec.StepsTotal, rec.StepsExecuted, rec.Failed,
				startedLocal.UTC(), finishedLocal.UTC(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.SaveRun(ctx, rec))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should convert an empty report to an empty JSON object", func(t *testing.T) {
		store, mockPool := newMockedStore(t)

		rec := &RunRecord{
			RunID:      uuid.NewString(),
			Goal:       "g",
			StartedAt:  time.Now().UTC(),
			FinishedAt: time.Now().UTC(),
		}

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(
				rec.RunID, rec.Goal, json.RawMessage("{}"),
				rec.StepsTotal, rec.StepsExecuted, rec.Failed,
				rec.StartedAt, rec.FinishedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, store.SaveRun(ctx, rec))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate insert failures", func(t *testing.T) {
		store, mockPool := newMockedStore(t)

		insertErr := errors.New("unique violation")
		rec := &RunRecord{RunID: "dup", Report: json.RawMessage("{}")}

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(
				rec.RunID, rec.Goal, rec.Report,
				rec.StepsTotal, rec.StepsExecuted, rec.Failed,
				rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
			).
			WillReturnError(insertErr)

		err := store.SaveRun(ctx, rec)
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetRun(t *testing.T) {
	ctx := context.Background()
	columns := []string{"run_id", "goal", "report", "steps_total", "steps_executed", "failed", "started_at", "finished_at"}

	t.Run("should retrieve a run by id", func(t *testing.T) {
		store, mockPool := newMockedStore(t)

		runID := uuid.NewString()
		now := time.Now().UTC()
		reportJSON := `{"goal":"g","extracted":{}}`

		rows := pgxmock.NewRows(columns).
			AddRow(runID, "g", json.RawMessage(reportJSON), 2, 2, false, now, now)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRun)).
			WithArgs(runID).
			WillReturnRows(rows)

		rec, err := store.GetRun(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, runID, rec.RunID)
		assert.Equal(t, "g", rec.Goal)
		assert.JSONEq(t, reportJSON, string(rec.Report))
		assert.True(t, rec.StartedAt.Equal(now))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report a missing run as ErrRunNotFound", func(t *testing.T) {
		store, mockPool := newMockedStore(t)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRun)).
			WithArgs("nope").
			WillReturnRows(pgxmock.NewRows(columns))

		_, err := store.GetRun(ctx, "nope")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRunNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	columns := []string{"run_id", "goal", "report", "steps_total", "steps_executed", "failed", "started_at", "finished_at"}

	t.Run("should list runs newest first", func(t *testing.T) {
		store, mockPool := newMockedStore(t)

		now := time.Now().UTC()
		rows := pgxmock.NewRows(columns).
			AddRow("run-2", "second", json.RawMessage("{}"), 1, 1, false, now, now).
			AddRow("run-1", "first", json.RawMessage("{}"), 1, 0, true, now.Add(-time.Hour), now.Add(-time.Hour))

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlListRuns)).
			WithArgs(10).
			WillReturnRows(rows)

		records, err := store.ListRuns(ctx, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "run-2", records[0].RunID)
		assert.True(t, records[1].Failed)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should apply the default limit when given zero", func(t *testing.T) {
		store, mockPool := newMockedStore(t)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlListRuns)).
			WithArgs(50).
			WillReturnRows(pgxmock.NewRows(columns))

		records, err := store.ListRuns(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, records)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
