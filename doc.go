// Package payflow provides a multi-connector payment orchestration core: a
// flow engine that dispatches authorize/capture/void/refund/sync/setup-mandate
// requests through connector-specific state machines behind one canonical
// status model, instead of exposing each connector's own API shape.
//
// # Architecture
//
// Requests enter through a thin chi HTTP surface (handler/, router/), which
// builds a flow.RouterData and hands it to a flow.Executor. The executor
// runs a flow.Operation's pipeline (Validate -> GetTracker -> Domain ->
// UpdateTracker -> Decide -> connector call -> PostUpdateTracker) against a
// connector.Connector resolved from connector.Registry, persisting state via
// a flow.Store (store.Postgres in production). Connector responses are
// translated back into the canonical statemachine.AttemptStatus /
// statemachine.IntentStatus / statemachine.RefundStatus vocabulary so
// callers never see a connector's native status strings.
//
// # Supported connectors
//
// Each connector lives in its own providers/<name> package and
// self-registers into connector.Default via a blank import and an init()
// call to connector.Register:
//
//	İyzico, Stripe, OzanPay, Paycell, Papara, Nkolay, PayTR, PayU, Payten,
//	Akbank, Ziraat
//
// # Authentication
//
// The HTTP surface uses JWT-based tenant authentication (infra/auth,
// infra/middle). POST /v1/auth/register self-registers the first tenant;
// POST /v1/auth/login exchanges credentials for a token; all /v1 routes
// other than /v1/auth/* and the webhook/callback endpoints require a
// Bearer token, with the tenant ID carried inside the token's claims rather
// than a separate header.
//
// # HTTP API
//
//	POST   /v1/auth/register                     - tenant self-registration
//	POST   /v1/auth/login                        - exchange credentials for a JWT
//	POST   /v1/auth/refresh                      - refresh a JWT
//	POST   /v1/auth/validate                     - validate a JWT
//	POST   /v1/auth/tenants                      - admin-only: create another tenant
//	POST   /v1/payments/{provider}                        - authorize a payment
//	GET    /v1/payments/{provider}/{paymentID}            - sync/check status
//	POST   /v1/payments/{provider}/{paymentID}/capture    - capture
//	DELETE /v1/payments/{provider}/{paymentID}            - void
//	POST   /v1/payments/{provider}/{paymentID}/refund     - refund
//	POST   /v1/config/tenant-config              - configure a connector for a tenant
//	GET    /v1/config/tenant-config              - read a tenant's connector config
//	DELETE /v1/config/tenant-config              - clear a tenant's connector config
//	GET    /v1/config/stats                      - configuration statistics
//	GET    /callback/{provider}                  - 3DS/redirect return handler
//	POST   /webhooks/{provider}                  - connector webhook ingestion
//
// # Auditing
//
// Every connector call is recorded through audit.Emitter, which fans an
// audit.Event out to a Postgres sink (always) and an OpenSearch sink (when
// configured) without ever letting a sink failure fail the request that
// produced it. Card numbers, CVVs, and tokens are masked before an event
// reaches a sink; see audit/masking.go.
//
// # Configuration
//
// Per-tenant connector credentials are stored via infra/config.ProviderConfig
// rather than process-wide environment variables, so two tenants can use the
// same connector with different credentials:
//
//	POST /v1/config/tenant-config
//	Authorization: Bearer <tenant_jwt_token>
//	{
//	  "provider": "iyzico",
//	  "config": {
//	    "IYZICO_API_KEY": "tenant-specific-api-key",
//	    "IYZICO_SECRET_KEY": "tenant-specific-secret-key",
//	    "IYZICO_ENVIRONMENT": "sandbox"
//	  }
//	}
package payflow
