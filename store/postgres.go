package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/money"
)

// maxOptimisticRetries bounds how many times UpdateTracker/PostUpdateTracker
// re-read and retry a write after a version mismatch before giving up with
// apperr.KindConflict, rather than retrying forever under contention.
const maxOptimisticRetries = 3

// Postgres implements flow.Store against payment_attempts, using a version
// column for optimistic concurrency instead of row-level locks, since a
// given AttemptID is normally only ever touched by one in-flight pipeline
// run at a time and a lock would hold a connection idle across the HTTP
// call flow.Executor makes mid-pipeline.
type Postgres struct {
	db *sql.DB
}

// New wraps an open *sql.DB; see infra/conn for recommended pool settings.
func New(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// DB returns the underlying connection pool, for collaborators (audit
// sinks, health checks) that need to share it rather than open their own.
func (p *Postgres) DB() *sql.DB {
	return p.db
}

func (p *Postgres) GetTracker(ctx context.Context, rd *flow.RouterData) error {
	rec, err := p.load(ctx, rd.AttemptID)
	if err != nil {
		return err
	}
	applyRecord(rd, rec)
	return nil
}

func (p *Postgres) UpdateTracker(ctx context.Context, rd *flow.RouterData) error {
	return p.save(ctx, rd)
}

func (p *Postgres) PostUpdateTracker(ctx context.Context, rd *flow.RouterData) error {
	return p.save(ctx, rd)
}

// FindAttemptIDByConnectorTransactionID resolves a connector's own
// transaction reference (the id a webhook payload carries) back to the
// AttemptID the flow engine tracks, for webhook.ObjectResolver.
func (p *Postgres) FindAttemptIDByConnectorTransactionID(ctx context.Context, connectorID, connectorTransactionID string) (string, error) {
	const query = `
		SELECT attempt_id FROM payment_attempts
		WHERE connector_id = $1 AND connector_transaction_id = $2
	`
	var attemptID string
	err := p.db.QueryRowContext(ctx, query, connectorID, connectorTransactionID).Scan(&attemptID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.New(apperr.KindNotFound, "attempt not found for connector transaction").
			With("connector_id", connectorID).With("connector_transaction_id", connectorTransactionID)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "resolve attempt by connector transaction id")
	}
	return attemptID, nil
}

func (p *Postgres) load(ctx context.Context, attemptID string) (attemptRecord, error) {
	const query = `
		SELECT intent_id, attempt_id, connector_id, merchant_id, attempt_status,
		       intent_status, capture_method, amount_minor, currency,
		       captured_minor, refunded_minor, connector_request_id,
		       connector_transaction_id, retries_remaining, version, created_at, updated_at
		FROM payment_attempts WHERE attempt_id = $1
	`
	var rec attemptRecord
	var amountMinor, capturedMinor, refundedMinor int64
	var currency string
	row := p.db.QueryRowContext(ctx, query, attemptID)
	err := row.Scan(&rec.IntentID, &rec.AttemptID, &rec.ConnectorID, &rec.MerchantID,
		&rec.AttemptStatus, &rec.IntentStatus, &rec.CaptureMethod,
		&amountMinor, &currency, &capturedMinor, &refundedMinor,
		&rec.ConnectorRequestID, &rec.ConnectorTransactionID, &rec.RetriesRemaining,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, apperr.New(apperr.KindNotFound, "attempt not found").With("attempt_id", attemptID)
	}
	if err != nil {
		return rec, apperr.Wrap(apperr.KindInternal, err, "load attempt")
	}
	rec.Amount, err = money.FromMinor(amountMinor, currency)
	if err != nil {
		return rec, apperr.Wrap(apperr.KindInternal, err, "decode amount")
	}
	rec.CapturedSoFar, err = money.FromMinor(capturedMinor, currency)
	if err != nil {
		return rec, apperr.Wrap(apperr.KindInternal, err, "decode captured amount")
	}
	rec.RefundedSoFar, err = money.FromMinor(refundedMinor, currency)
	if err != nil {
		return rec, apperr.Wrap(apperr.KindInternal, err, "decode refunded amount")
	}
	return rec, nil
}

// save upserts the RouterData's current state with a version check: on a
// zero-rows-affected update it re-reads, ports the RouterData's in-memory
// changes onto the fresh version, and retries up to maxOptimisticRetries
// times before surfacing apperr.KindConflict.
func (p *Postgres) save(ctx context.Context, rd *flow.RouterData) error {
	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		rec := recordFromRouterData(rd)
		amountMinor, err := rec.Amount.Minor()
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "encode amount")
		}
		capturedMinor, err := rec.CapturedSoFar.Minor()
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "encode captured amount")
		}
		refundedMinor, err := rec.RefundedSoFar.Minor()
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "encode refunded amount")
		}

		const query = `
			UPDATE payment_attempts SET
				attempt_status = $1, intent_status = $2, capture_method = $3,
				amount_minor = $4, captured_minor = $5, refunded_minor = $6,
				connector_request_id = $7, connector_transaction_id = $8,
				retries_remaining = $9, version = version + 1, updated_at = now()
			WHERE attempt_id = $10 AND version = $11
		`
		res, err := p.db.ExecContext(ctx, query,
			rec.AttemptStatus, rec.IntentStatus, rec.CaptureMethod,
			amountMinor, capturedMinor, refundedMinor,
			rec.ConnectorRequestID, rec.ConnectorTransactionID, rec.RetriesRemaining,
			rec.AttemptID, rec.Version)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "update attempt")
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "update attempt rows affected")
		}
		if rows == 1 {
			return nil
		}

		fresh, loadErr := p.load(ctx, rd.AttemptID)
		if loadErr != nil {
			return loadErr
		}
		rd.AttemptStatus = fresh.AttemptStatus
		applyRecordVersion(rd, fresh)
	}
	return apperr.New(apperr.KindConflict, "attempt updated concurrently too many times").
		With("attempt_id", rd.AttemptID)
}

func applyRecord(rd *flow.RouterData, rec attemptRecord) {
	rd.IntentID = rec.IntentID
	rd.ConnectorID = rec.ConnectorID
	rd.MerchantID = rec.MerchantID
	rd.AttemptStatus = rec.AttemptStatus
	rd.IntentStatus = rec.IntentStatus
	rd.CaptureMethod = rec.CaptureMethod
	rd.Amount = rec.Amount
	rd.CapturedSoFar = rec.CapturedSoFar
	rd.RefundedSoFar = rec.RefundedSoFar
	rd.ConnectorRequestID = rec.ConnectorRequestID
	rd.ConnectorTransactionID = rec.ConnectorTransactionID
	rd.RetriesRemaining = rec.RetriesRemaining
	rd.CreatedAt = rec.CreatedAt
	rd.UpdatedAt = rec.UpdatedAt
	rd.StoreVersion = rec.Version
}

// applyRecordVersion refreshes only the optimistic-concurrency bookkeeping
// after a failed write, leaving the RouterData's in-progress field changes
// (the ones the current Operation computed) intact for the retry.
func applyRecordVersion(rd *flow.RouterData, rec attemptRecord) {
	rd.StoreVersion = rec.Version
}

func recordFromRouterData(rd *flow.RouterData) attemptRecord {
	return attemptRecord{
		IntentID:               rd.IntentID,
		AttemptID:              rd.AttemptID,
		ConnectorID:            rd.ConnectorID,
		MerchantID:             rd.MerchantID,
		AttemptStatus:          rd.AttemptStatus,
		IntentStatus:           rd.IntentStatus,
		CaptureMethod:          rd.CaptureMethod,
		Amount:                 rd.Amount,
		CapturedSoFar:          rd.CapturedSoFar,
		RefundedSoFar:          rd.RefundedSoFar,
		ConnectorRequestID:     rd.ConnectorRequestID,
		ConnectorTransactionID: rd.ConnectorTransactionID,
		RetriesRemaining:       rd.RetriesRemaining,
		Version:                rd.StoreVersion,
	}
}
