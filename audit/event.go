// Package audit generalizes the teacher's per-provider payment_logs tables
// (infra/postgres/logger.go) and its OpenSearch mirror (infra/opensearch)
// into a single structured audit-event schema keyed by flow name and
// connector id rather than by a hardcoded provider-to-table map, since the
// new domain's connector set is open-ended rather than nine fixed Turkish
// providers.
package audit

import (
	"context"
	"time"
)

// Event is one structured audit record: a connector call, a flow-pipeline
// stage result, or a webhook delivery outcome.
type Event struct {
	Timestamp     time.Time      `json:"timestamp"`
	MerchantID    string         `json:"merchant_id,omitempty"`
	IntentID      string         `json:"intent_id,omitempty"`
	AttemptID     string         `json:"attempt_id,omitempty"`
	Flow          string         `json:"flow"`
	ConnectorID   string         `json:"connector_id"`
	RequestID     string         `json:"request_id,omitempty"`
	StatusCode    int            `json:"status_code,omitempty"`
	ProcessingMs  int64          `json:"processing_ms"`
	Request       map[string]any `json:"request,omitempty"`
	Response      map[string]any `json:"response,omitempty"`
	ErrorCode     string         `json:"error_code,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// Sink receives a sanitized Event. Implementations must not block the
// caller indefinitely; the Emitter gives each sink the request's context.
type Sink interface {
	Write(ctx context.Context, ev Event) error
}
