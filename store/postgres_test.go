package store

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

// SQLite stands in for Postgres in these tests (same $N bind-parameter
// syntax, same UPDATE ... WHERE version = $N optimistic-lock shape); no
// live Postgres instance is required to exercise the conflict-retry path.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE payment_attempts (
			intent_id TEXT, attempt_id TEXT PRIMARY KEY, connector_id TEXT,
			merchant_id TEXT, attempt_status TEXT, intent_status TEXT,
			capture_method TEXT, amount_minor INTEGER, currency TEXT,
			captured_minor INTEGER, refunded_minor INTEGER,
			connector_request_id TEXT, connector_transaction_id TEXT,
			retries_remaining INTEGER, version INTEGER,
			created_at DATETIME, updated_at DATETIME
		)
	`)
	require.NoError(t, err)
	return db
}

func seedAttempt(t *testing.T, db *sql.DB, attemptID string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO payment_attempts
			(intent_id, attempt_id, connector_id, merchant_id, attempt_status,
			 intent_status, capture_method, amount_minor, currency,
			 captured_minor, refunded_minor, connector_request_id,
			 connector_transaction_id, retries_remaining, version, created_at, updated_at)
		VALUES
			('int_1', $1, 'stripe', 'm_1', $2, $3, $4, 1000, 'USD', 0, 0, '', '', 3, 1, datetime('now'), datetime('now'))
	`, attemptID, statemachine.Started, statemachine.RequiresPaymentMethod, statemachine.CaptureAutomatic)
	require.NoError(t, err)
}

func TestPostgresGetTrackerLoadsRow(t *testing.T) {
	db := newTestDB(t)
	seedAttempt(t, db, "att_1")
	s := New(db)

	rd := &flow.RouterData{AttemptID: "att_1"}
	err := s.GetTracker(context.Background(), rd)
	require.NoError(t, err)
	assert.Equal(t, "int_1", rd.IntentID)
	assert.Equal(t, statemachine.Started, rd.AttemptStatus)
	assert.Equal(t, 1, rd.StoreVersion)
}

func TestPostgresGetTrackerNotFound(t *testing.T) {
	db := newTestDB(t)
	s := New(db)

	rd := &flow.RouterData{AttemptID: "missing"}
	err := s.GetTracker(context.Background(), rd)
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}

func TestPostgresUpdateTrackerPersistsAndBumpsVersion(t *testing.T) {
	db := newTestDB(t)
	seedAttempt(t, db, "att_2")
	s := New(db)

	rd := &flow.RouterData{AttemptID: "att_2"}
	require.NoError(t, s.GetTracker(context.Background(), rd))

	rd.AttemptStatus = statemachine.Authorizing
	amt, err := money.FromMinor(1000, "USD")
	require.NoError(t, err)
	rd.Amount = amt

	require.NoError(t, s.UpdateTracker(context.Background(), rd))
	assert.Equal(t, 2, rd.StoreVersion)

	reloaded := &flow.RouterData{AttemptID: "att_2"}
	require.NoError(t, s.GetTracker(context.Background(), reloaded))
	assert.Equal(t, statemachine.Authorizing, reloaded.AttemptStatus)
}

func TestPostgresSaveRetriesOnVersionConflict(t *testing.T) {
	db := newTestDB(t)
	seedAttempt(t, db, "att_3")
	s := New(db)

	rd := &flow.RouterData{AttemptID: "att_3"}
	require.NoError(t, s.GetTracker(context.Background(), rd))

	// simulate a concurrent writer bumping the version out from under rd.
	_, err := db.Exec(`UPDATE payment_attempts SET version = version + 1 WHERE attempt_id = $1`, "att_3")
	require.NoError(t, err)

	rd.AttemptStatus = statemachine.Authorizing
	require.NoError(t, s.UpdateTracker(context.Background(), rd))
}
