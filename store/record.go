// Package store implements flow.Store against Postgres: loading and saving
// the PaymentAttempt row a RouterData drives through its pipeline, with
// optimistic concurrency (a version column) guarding against two concurrent
// Operation runs clobbering each other's UpdateTracker/PostUpdateTracker
// write. Grounded on infra/conn/db.go's pool settings and provider/service.go's
// single *sql.DB-per-call style, generalized away from the teacher's
// per-provider in-memory PaymentService map toward real persisted rows.
package store

import (
	"time"

	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

// attemptRecord is the row shape backing payment_attempts. ConnectorID and
// AuthHeaders are denormalized onto the row since a RouterData always
// travels with exactly one of each for its lifetime.
type attemptRecord struct {
	IntentID      string
	AttemptID     string
	ConnectorID   string
	MerchantID    string
	AttemptStatus statemachine.AttemptStatus
	IntentStatus  statemachine.IntentStatus
	CaptureMethod statemachine.CaptureMethod

	Amount        money.Amount
	CapturedSoFar money.Amount
	RefundedSoFar money.Amount

	ConnectorRequestID     string
	ConnectorTransactionID string
	RetriesRemaining       int

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}
