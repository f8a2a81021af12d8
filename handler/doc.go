// Package handler provides the HTTP surface for the payflow payment
// orchestration core: thin chi handlers that decode a request, build a
// flow.RouterData, and delegate to flow.Executor against a connector
// resolved from connector.Registry. Handlers never implement payment logic
// themselves; that lives in flow.Operation and the statemachine package.
//
// # Core Handlers
//
//   - PaymentHandler: authorize, sync, capture, void, refund, 3DS callback,
//     and webhook ingestion
//   - ConfigHandler: per-tenant connector configuration
//   - AuthHandler: tenant registration, login, JWT refresh/validation
//   - HealthHandler: liveness/readiness reporting
//
// # Payment Handler
//
//	paymentHandler := handler.NewPaymentHandler(registry, executor, store, locks, providerConfig, webhooks, validate)
//
//	r.Post("/payments/{provider}", paymentHandler.ProcessPayment)
//	r.Get("/payments/{provider}/{paymentID}", paymentHandler.GetPaymentStatus)
//	r.Post("/payments/{provider}/{paymentID}/capture", paymentHandler.CapturePayment)
//	r.Delete("/payments/{provider}/{paymentID}", paymentHandler.CancelPayment)
//	r.Post("/payments/{provider}/{paymentID}/refund", paymentHandler.RefundPayment)
//
// # Multi-Tenant Support
//
// The tenant is carried inside the JWT's claims, not a separate header:
//
//	POST /v1/payments/iyzico
//	Authorization: Bearer <tenant_jwt_token>
//	Content-Type: application/json
//
//	{
//	  "amount": "100.50",
//	  "currency": "TRY",
//	  "paymentMethodToken": "tok_...",
//	  "captureMethod": "automatic"
//	}
//
// # Configuration Handler
//
// ConfigHandler manages tenant-specific connector configuration:
//
//	configHandler := handler.NewConfigHandler(providerConfig, registry, validate)
//
//	r.Post("/config/tenant-config", configHandler.SetEnv)
//	r.Get("/config/tenant-config", configHandler.GetTenantConfig)
//	r.Delete("/config/tenant-config", configHandler.DeleteTenantConfig)
//	r.Get("/config/stats", configHandler.GetStats)
//
// # Callback and Webhook Handling
//
//	r.HandleFunc("/callback/{provider}", paymentHandler.HandleCallback)
//	r.Post("/webhooks/{provider}", paymentHandler.HandleWebhook)
//
// HandleWebhook hands the raw delivery to a webhook.Pipeline, which verifies
// the connector's signature, resolves the internal attempt, and re-enters
// the flow engine via a sync operation rather than trusting the payload.
//
// # Request Validation
//
// Handlers validate decoded request bodies with go-playground/validator:
//
//	type CreatePaymentRequest struct {
//	    Amount   string `json:"amount" validate:"required"`
//	    Currency string `json:"currency" validate:"required,len=3"`
//	}
//
// # Error Handling
//
// Every error returned by the flow engine carries an apperr.Kind; handlers
// map it to an HTTP status with statusForError rather than re-deriving the
// mapping per handler:
//
//	{
//	  "success": false,
//	  "message": "insufficient funds",
//	  "error": {"kind": "connector_permanent"}
//	}
//
// # Authentication
//
// All /payments, /config, and /auth/profile-style endpoints require:
//
//	Authorization: Bearer <jwt>
//
// /auth/login, /auth/register, /auth/refresh, /auth/validate, the 3DS
// callback, and webhook ingestion are public.
package handler
