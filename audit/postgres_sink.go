package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// PostgresSink writes every Event into a single audit_events table, unlike
// infra/postgres/logger.go's per-provider table dispatch (getProviderTableName):
// the new domain's connector set is open-ended, so one table keyed by
// connector_id/flow replaces the teacher's nine-provider hardcode.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink wraps an already-open *sql.DB (see infra/conn for pool
// settings); migrations are expected to have created audit_events already.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Write(ctx context.Context, ev Event) error {
	reqJSON, err := json.Marshal(ev.Request)
	if err != nil {
		return errors.Wrap(err, "audit: marshal request")
	}
	respJSON, err := json.Marshal(ev.Response)
	if err != nil {
		return errors.Wrap(err, "audit: marshal response")
	}

	const query = `
		INSERT INTO audit_events
			(timestamp, merchant_id, intent_id, attempt_id, flow, connector_id,
			 request_id, status_code, processing_ms, request, response, error_code, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		ev.Timestamp, ev.MerchantID, ev.IntentID, ev.AttemptID, ev.Flow, ev.ConnectorID,
		ev.RequestID, ev.StatusCode, ev.ProcessingMs, string(reqJSON), string(respJSON),
		ev.ErrorCode, ev.ErrorMessage,
	)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("audit: insert event for flow %s", ev.Flow))
	}
	return nil
}
