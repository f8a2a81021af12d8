// Package connector defines the closed contract every payment connector
// implements and the registry the flow engine dispatches through. It
// generalizes the teacher's single PaymentProvider interface
// (provider/provider.go) into the per-flow request/response builder shape
// the engine needs: instead of one CreatePayment-style method per capability,
// a connector builds an HTTPRequest for whatever flow the executor is
// currently running and parses whatever HTTPResponse comes back.
package connector

import (
	"context"
	"time"
)

// RequestContent is the wire encoding a connector asks the executor to use
// when building the outbound HTTP request body.
type RequestContent int

const (
	ContentJSON RequestContent = iota
	ContentFormURLEncoded
	ContentXML
	ContentRawBytes
	ContentFormData
)

// HTTPRequest is what a connector hands back to the executor to perform.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Content RequestContent
	Body    []byte
}

// HTTPResponse is what the executor hands back to a connector to parse.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Connector is the closed set of operations every payment connector must
// implement to participate in a flow::Operation. A connector never calls
// net/http itself; it only builds requests and parses responses, so the
// executor owns timeouts, retries, auditing and masking uniformly.
type Connector interface {
	// ID is the connector's registry name, e.g. "stripe", "iyzico".
	ID() string

	// GetHeaders returns the headers this flow requires beyond auth, e.g.
	// idempotency keys or connector-specific API version pins.
	GetHeaders(ctx context.Context, flow string, authHeaders map[string]string) (map[string]string, error)

	// GetContentType returns the RequestContent this flow's request body
	// must be encoded as.
	GetContentType(flow string) RequestContent

	// GetURL returns the absolute URL for this flow against the
	// connector's configured base URL.
	GetURL(ctx context.Context, flow string, baseURL string) (string, error)

	// GetRequestBody builds the flow-specific request payload from the
	// engine's neutral request data.
	GetRequestBody(ctx context.Context, flow string, data any) ([]byte, error)

	// BuildRequest assembles the full HTTPRequest for this flow.
	BuildRequest(ctx context.Context, flow string, data any, baseURL string, authHeaders map[string]string) (*HTTPRequest, error)

	// HandleResponse parses a successful HTTPResponse into the engine's
	// neutral response data for this flow.
	HandleResponse(ctx context.Context, flow string, resp *HTTPResponse) (any, error)

	// GetErrorResponse parses a non-2xx HTTPResponse into the connector's
	// native error shape, before BuildErrorResponse classifies it.
	GetErrorResponse(ctx context.Context, flow string, resp *HTTPResponse) (any, error)

	// BuildErrorResponse converts a connector-native error (from
	// GetErrorResponse, or a transport failure) into the engine's neutral
	// error shape carrying an apperr.Kind-compatible classification.
	BuildErrorResponse(ctx context.Context, flow string, nativeErr any) error
}

// ConnectorCommon exposes static facts about a connector that do not depend
// on any particular flow, generalizing the teacher's Validate/GetRequiredConfig
// pair (provider/provider.go) into the capability record used throughout the
// engine (connector.Capability).
type ConnectorCommon interface {
	Capability() Capability
}

// ConnectorValidation lets a connector reject a request before any HTTP call
// is attempted, mirroring provider.PaymentProvider.ValidatePaymentRequest.
type ConnectorValidation interface {
	ValidateRequest(ctx context.Context, flow string, data any) error
}

// ConnectorSpecifications exposes a connector's supported payment methods,
// capture methods and currencies for routing/eligibility decisions, without
// requiring a live connector instance.
type ConnectorSpecifications interface {
	SupportedPaymentMethods() []string
	SupportedCaptureMethods() []string
	SupportedCurrencies() []string
}

// TokenResult is what a connector's token endpoint hands back: an access
// token and how long it remains valid for.
type TokenResult struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// TokenAuthenticator is implemented by connectors whose Capability.AuthShape
// is AuthOAuth: it builds the token-refresh HTTP request and parses the
// response, so Executor can fetch a connector's access token through the
// same httpexec.Executor every other call uses, coalesced and cached by
// token.Cache, instead of the connector calling net/http itself.
type TokenAuthenticator interface {
	BuildTokenRequest(ctx context.Context, baseURL string) (*HTTPRequest, error)
	ParseTokenResponse(ctx context.Context, resp *HTTPResponse) (TokenResult, error)
}

// IncomingWebhook is implemented by connectors capable of verifying and
// classifying inbound webhook deliveries (spec webhook ingestion pipeline).
type IncomingWebhook interface {
	VerifySignature(ctx context.Context, headers map[string]string, body []byte, secret []byte) error
	GetWebhookObjectReferenceID(ctx context.Context, body []byte) (string, error)
	GetWebhookEventType(ctx context.Context, body []byte) (WebhookEventClass, error)
}

// WebhookEventClass is the connector-agnostic classification of an inbound
// webhook event, after a connector's raw event name has been mapped.
type WebhookEventClass string

const (
	WebhookPaymentSucceeded  WebhookEventClass = "payment_succeeded"
	WebhookPaymentFailed     WebhookEventClass = "payment_failed"
	WebhookPaymentProcessing WebhookEventClass = "payment_processing"
	WebhookRefundSucceeded   WebhookEventClass = "refund_succeeded"
	WebhookRefundFailed      WebhookEventClass = "refund_failed"
	WebhookDisputeCreated    WebhookEventClass = "dispute_created"
	WebhookPayoutSucceeded   WebhookEventClass = "payout_succeeded"
	WebhookPayoutFailed      WebhookEventClass = "payout_failed"
	WebhookUnknown           WebhookEventClass = "unknown"
)
