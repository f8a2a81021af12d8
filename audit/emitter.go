package audit

import (
	"context"

	"github.com/mstgnz/payflow/infra/logger"
)

// Emitter fans a single Event out to every configured Sink, applying
// Sanitize to Request/Response before any sink sees them. Modeled on
// provider.DBPaymentLogger's LogRequest/LogResponse/LogError split, but
// collapsed into one call since every sink here takes the full Event.
type Emitter struct {
	sinks []Sink
	log   *logger.SystemLogger
}

// NewEmitter builds an Emitter over the given sinks. A nil sink is ignored,
// so callers can wire optional sinks (e.g. no OpenSearch in dev) without
// branching at the call site.
func NewEmitter(log *logger.SystemLogger, sinks ...Sink) *Emitter {
	e := &Emitter{log: log}
	for _, s := range sinks {
		if s != nil {
			e.sinks = append(e.sinks, s)
		}
	}
	return e
}

// Emit sanitizes ev's Request/Response maps and writes to every sink.
// A sink failure is logged but never aborts the remaining sinks or
// propagates to the caller: audit emission must never fail a payment flow.
func (e *Emitter) Emit(ctx context.Context, ev Event) {
	ev.Request = Sanitize(ev.Request)
	ev.Response = Sanitize(ev.Response)

	for _, s := range e.sinks {
		if err := s.Write(ctx, ev); err != nil && e.log != nil {
			e.log.Error("audit sink write failed", err, logger.LogContext{
				Fields: map[string]any{"flow": ev.Flow, "connector_id": ev.ConnectorID},
			})
		}
	}
}
