package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
)

// ConnectorSecret resolves the signing secret for a connector+merchant
// pair, kept separate from connector.Connector so the pipeline never needs
// a live connector instance just to verify a signature.
type ConnectorSecretResolver func(ctx context.Context, connectorID, merchantID string) (secret []byte, scheme SignatureScheme, err error)

// ObjectResolver maps a connector's raw object reference (e.g. a Stripe
// payment_intent id) to the engine's internal intent/payout id.
type ObjectResolver func(ctx context.Context, connectorID, objectReferenceID string) (internalID string, err error)

// SyncTrigger re-enters the flow engine's Sync operation for the resolved
// internal object, the step that actually reconciles engine state from the
// webhook's implied event.
type SyncTrigger func(ctx context.Context, internalID string) error

// OutboundEmitter publishes the classified event to merchant-configured
// webhook endpoints, at-least-once.
type OutboundEmitter func(ctx context.Context, internalID string, class connector.WebhookEventClass) error

// trustedTerminalPayoutEvents are payout webhook events the pipeline treats
// as authoritative without re-triggering an in-engine Sync, since the payout
// has already reached a terminal state the connector will not revise.
var trustedTerminalPayoutEvents = map[connector.WebhookEventClass]bool{
	connector.WebhookPayoutSucceeded: true,
	connector.WebhookPayoutFailed:    true,
}

// Pipeline implements the 7-step inbound webhook flow: parse connector id,
// verify signature, extract object reference, resolve to an internal
// object, classify the event, trigger Sync (except trusted terminal payout
// events), emit an outbound webhook at-least-once.
type Pipeline struct {
	secrets  ConnectorSecretResolver
	resolve  ObjectResolver
	sync     SyncTrigger
	emit     OutboundEmitter
	registry *connector.Registry

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewPipeline wires the pipeline's collaborators.
func NewPipeline(registry *connector.Registry, secrets ConnectorSecretResolver, resolve ObjectResolver, sync SyncTrigger, emit OutboundEmitter) *Pipeline {
	return &Pipeline{
		registry: registry,
		secrets:  secrets,
		resolve:  resolve,
		sync:     sync,
		emit:     emit,
		seen:     make(map[string]time.Time),
	}
}

// Delivery is one inbound webhook HTTP call, already routed to a
// connector id by the URL path.
type Delivery struct {
	ConnectorID string
	MerchantID  string
	Headers     map[string]string
	Body        []byte
	SignatureHeaderKey string
}

// idempotencyWindow bounds how long a (connector, object-ref) pair is
// remembered as "already processed", per the engine's at-least-once (not
// exactly-once) delivery guarantee: a redelivery inside the window is a
// cheap no-op rather than a duplicate Sync.
const idempotencyWindow = 10 * time.Minute

// Ingest runs the full 7-step pipeline for one delivery.
func (p *Pipeline) Ingest(ctx context.Context, d Delivery) error {
	conn, err := p.registry.Create(d.ConnectorID, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidRequest, err, "webhook: unknown connector").With("connector", d.ConnectorID)
	}
	hookConn, ok := conn.(connector.IncomingWebhook)
	if !ok {
		return apperr.New(apperr.KindInvalidRequest, "webhook: connector does not support incoming webhooks").With("connector", d.ConnectorID)
	}

	secret, scheme, err := p.secrets(ctx, d.ConnectorID, d.MerchantID)
	if err != nil {
		return apperr.Wrap(apperr.KindWebhookVerification, err, "webhook: secret lookup failed")
	}
	if err := Verify(scheme, d.Body, d.Headers[d.SignatureHeaderKey], secret); err != nil {
		return err
	}

	objectRef, err := hookConn.GetWebhookObjectReferenceID(ctx, d.Body)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidRequest, err, "webhook: could not extract object reference")
	}

	dedupeKey := fmt.Sprintf("%s:%s", d.ConnectorID, objectRef)
	if p.alreadySeen(dedupeKey) {
		return nil
	}

	internalID, err := p.resolve(ctx, d.ConnectorID, objectRef)
	if err != nil {
		return apperr.Wrap(apperr.KindNotFound, err, "webhook: could not resolve internal object").With("object_ref", objectRef)
	}

	class, err := hookConn.GetWebhookEventType(ctx, d.Body)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidRequest, err, "webhook: could not classify event")
	}

	if !trustedTerminalPayoutEvents[class] {
		if err := p.sync(ctx, internalID); err != nil {
			return apperr.Wrap(apperr.KindInternal, err, "webhook: sync trigger failed").With("internal_id", internalID)
		}
	}

	p.markSeen(dedupeKey)
	return p.emit(ctx, internalID, class)
}

func (p *Pipeline) alreadySeen(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	seenAt, ok := p.seen[key]
	if !ok {
		return false
	}
	if time.Since(seenAt) > idempotencyWindow {
		delete(p.seen, key)
		return false
	}
	return true
}

func (p *Pipeline) markSeen(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[key] = time.Now()
	if len(p.seen) > 10000 {
		p.evictOldestLocked()
	}
}

func (p *Pipeline) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for k, v := range p.seen {
		if oldestKey == "" || v.Before(oldestAt) {
			oldestKey, oldestAt = k, v
		}
	}
	delete(p.seen, oldestKey)
}
