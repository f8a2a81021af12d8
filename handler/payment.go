package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/infra/config"
	"github.com/mstgnz/payflow/infra/middle"
	"github.com/mstgnz/payflow/infra/response"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
	"github.com/mstgnz/payflow/webhook"
)

// requestTimeout bounds how long a single HTTP call may wait on a
// connector round trip.
const requestTimeout = 30 * time.Second

// PaymentHandler is the thin HTTP surface over the flow engine: it
// translates each REST call into a flow.RouterData and one or two
// flow.Operation runs against the merchant's configured connector, then
// reports the resulting statuses back as JSON.
type PaymentHandler struct {
	registry       *connector.Registry
	executor       *flow.Executor
	store          flow.Store
	locks          *flow.IntentLock
	providerConfig *config.ProviderConfig
	webhooks       *webhook.Pipeline
	validate       *validator.Validate
}

// NewPaymentHandler wires a PaymentHandler around the flow engine's
// collaborators.
func NewPaymentHandler(registry *connector.Registry, executor *flow.Executor, store flow.Store, locks *flow.IntentLock, providerConfig *config.ProviderConfig, webhooks *webhook.Pipeline, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{
		registry:       registry,
		executor:       executor,
		store:          store,
		locks:          locks,
		providerConfig: providerConfig,
		webhooks:       webhooks,
		validate:       validate,
	}
}

// resolveConnector builds a connector instance for providerName using the
// requesting tenant's stored configuration. A missing tenant config falls
// through to a zero-config connector, matching connectors that default to
// sandbox credentials when nothing has been set yet.
func (h *PaymentHandler) resolveConnector(r *http.Request, providerName string) (connector.Connector, string, error) {
	tenantID := middle.GetTenantIDFromContext(r.Context())
	cfg, _ := h.providerConfig.GetTenantConfig(tenantID, providerName)
	conn, err := h.registry.Create(providerName, cfg)
	if err != nil {
		return nil, tenantID, apperr.Wrap(apperr.KindInvalidRequest, err, "connector unavailable").With("provider", providerName)
	}
	return conn, tenantID, nil
}

// acquireLock serializes concurrent operations against the same intent
// when an IntentLock is wired; a handler built without one (e.g. tests, or
// a single-instance deployment with no Redis) runs unlocked.
func (h *PaymentHandler) acquireLock(ctx context.Context, key string) (func(), error) {
	if h.locks == nil {
		return func() {}, nil
	}
	return h.locks.Acquire(ctx, key)
}

// statusForError maps a flow/connector error to an HTTP status code via its
// apperr.Kind classification, per the engine-wide rule that every Kind
// carries one canonical status.
func statusForError(err error) int {
	switch apperr.Of(err) {
	case apperr.KindInvalidRequest:
		return http.StatusBadRequest
	case apperr.KindInvalidState, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuthTokenUnavailable, apperr.KindConnectorTransient, apperr.KindTimeout:
		return http.StatusBadGateway
	case apperr.KindConnectorPermanent:
		return http.StatusUnprocessableEntity
	case apperr.KindWebhookVerification:
		return http.StatusUnauthorized
	case apperr.KindResourceBusy:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PaymentResult is the wire shape every flow operation reports back,
// projecting the RouterData fields a caller actually needs.
type PaymentResult struct {
	IntentID               string `json:"intentId,omitempty"`
	AttemptID              string `json:"attemptId"`
	IntentStatus           string `json:"intentStatus,omitempty"`
	AttemptStatus          string `json:"attemptStatus"`
	ConnectorTransactionID string `json:"connectorTransactionId,omitempty"`
	CapturedAmount         string `json:"capturedAmount,omitempty"`
	RefundedAmount         string `json:"refundedAmount,omitempty"`
}

func routerDataResult(rd *flow.RouterData) PaymentResult {
	result := PaymentResult{
		IntentID:               rd.IntentID,
		AttemptID:              rd.AttemptID,
		IntentStatus:           string(rd.IntentStatus),
		AttemptStatus:          string(rd.AttemptStatus),
		ConnectorTransactionID: rd.ConnectorTransactionID,
	}
	if !rd.CapturedSoFar.IsZero() {
		result.CapturedAmount = fmt.Sprintf("%.2f", rd.CapturedSoFar.Major())
	}
	if !rd.RefundedSoFar.IsZero() {
		result.RefundedAmount = fmt.Sprintf("%.2f", rd.RefundedSoFar.Major())
	}
	return result
}

// CreatePaymentRequest is the wire shape ProcessPayment accepts: one call
// that creates the intent and immediately authorizes it, mirroring the
// teacher's single-request "CreatePayment" ergonomics.
type CreatePaymentRequest struct {
	PaymentMethodToken string  `json:"paymentMethodToken" validate:"required"`
	Amount             float64 `json:"amount" validate:"required,gt=0"`
	Currency           string  `json:"currency" validate:"required,len=3"`
	CaptureMethod      string  `json:"captureMethod"`
	CustomerID         string  `json:"customerId"`
	Use3DS             bool    `json:"use3ds"`
	ReturnURL          string  `json:"returnUrl"`
}

// ProcessPayment handles payment creation + authorization requests.
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	providerName := strings.ToLower(chi.URLParam(r, "provider"))
	conn, tenantID, err := h.resolveConnector(r, providerName)
	if err != nil {
		response.Error(w, statusForError(err), "Provider unavailable", err)
		return
	}

	captureMethod := statemachine.CaptureAutomatic
	if strings.EqualFold(req.CaptureMethod, "manual") {
		captureMethod = statemachine.CaptureManual
	}

	rd := &flow.RouterData{
		IntentID:      money.NewIntentID(),
		AttemptID:     money.NewAttemptID(),
		ConnectorID:   providerName,
		MerchantID:    tenantID,
		Amount:        money.FromMajor(req.Amount, req.Currency),
		CaptureMethod: captureMethod,
	}

	release, err := h.acquireLock(ctx, rd.IntentID)
	if err != nil {
		response.Error(w, statusForError(err), "Could not acquire intent lock", err)
		return
	}
	defer release()

	if err := h.executor.Run(ctx, flow.NewCreateOperation(), conn, h.store, rd); err != nil {
		response.Error(w, statusForError(err), "Failed to create payment intent", err)
		return
	}

	rd.Request = &flow.AuthorizeRequest{
		PaymentMethodToken: req.PaymentMethodToken,
		Amount:             fmt.Sprintf("%.2f", req.Amount),
		Currency:           strings.ToUpper(req.Currency),
		CaptureMethod:      captureMethod,
		CustomerID:         req.CustomerID,
		Use3DS:             req.Use3DS,
		ReturnURL:          req.ReturnURL,
	}
	if err := h.executor.Run(ctx, flow.NewAuthorizeOperation(), conn, h.store, rd); err != nil {
		response.Error(w, statusForError(err), "Payment authorization failed", err)
		return
	}

	response.Success(w, http.StatusOK, "Payment processed", routerDataResult(rd))
}

// GetPaymentStatus reconciles and returns an attempt's current status.
func (h *PaymentHandler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	providerName := strings.ToLower(chi.URLParam(r, "provider"))
	attemptID := chi.URLParam(r, "paymentID")
	if attemptID == "" {
		response.Error(w, http.StatusBadRequest, "Missing payment ID", nil)
		return
	}

	conn, _, err := h.resolveConnector(r, providerName)
	if err != nil {
		response.Error(w, statusForError(err), "Provider unavailable", err)
		return
	}

	rd := &flow.RouterData{AttemptID: attemptID, ConnectorID: providerName, Request: &flow.SyncRequest{}}
	if err := h.executor.Run(ctx, flow.NewSyncOperation(), conn, h.store, rd); err != nil {
		response.Error(w, statusForError(err), "Failed to get payment status", err)
		return
	}

	response.Success(w, http.StatusOK, "Payment status retrieved", routerDataResult(rd))
}

// CapturePayment captures a previously authorized, not-yet-captured
// attempt, in full or in part.
func (h *PaymentHandler) CapturePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	providerName := strings.ToLower(chi.URLParam(r, "provider"))
	attemptID := chi.URLParam(r, "paymentID")
	if attemptID == "" {
		response.Error(w, http.StatusBadRequest, "Missing payment ID", nil)
		return
	}

	var req struct {
		Amount   float64 `json:"amount" validate:"required,gt=0"`
		Currency string  `json:"currency" validate:"required,len=3"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	conn, _, err := h.resolveConnector(r, providerName)
	if err != nil {
		response.Error(w, statusForError(err), "Provider unavailable", err)
		return
	}

	release, err := h.acquireLock(ctx, attemptID)
	if err != nil {
		response.Error(w, statusForError(err), "Could not acquire intent lock", err)
		return
	}
	defer release()

	rd := &flow.RouterData{
		AttemptID:   attemptID,
		ConnectorID: providerName,
		Request:     &flow.CaptureRequest{AmountToCapture: money.FromMajor(req.Amount, req.Currency)},
	}
	if err := h.executor.Run(ctx, flow.NewCaptureOperation(), conn, h.store, rd); err != nil {
		response.Error(w, statusForError(err), "Failed to capture payment", err)
		return
	}

	response.Success(w, http.StatusOK, "Payment captured", routerDataResult(rd))
}

// CancelPayment voids an authorized-but-not-captured attempt.
func (h *PaymentHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	providerName := strings.ToLower(chi.URLParam(r, "provider"))
	attemptID := chi.URLParam(r, "paymentID")
	if attemptID == "" {
		response.Error(w, http.StatusBadRequest, "Missing payment ID", nil)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req) // empty reason on parse failure is fine

	conn, _, err := h.resolveConnector(r, providerName)
	if err != nil {
		response.Error(w, statusForError(err), "Provider unavailable", err)
		return
	}

	release, err := h.acquireLock(ctx, attemptID)
	if err != nil {
		response.Error(w, statusForError(err), "Could not acquire intent lock", err)
		return
	}
	defer release()

	rd := &flow.RouterData{
		AttemptID:   attemptID,
		ConnectorID: providerName,
		Request:     &flow.VoidRequest{CancellationReason: req.Reason},
	}
	if err := h.executor.Run(ctx, flow.NewVoidOperation(), conn, h.store, rd); err != nil {
		response.Error(w, statusForError(err), "Failed to cancel payment", err)
		return
	}

	response.Success(w, http.StatusOK, "Payment cancelled", routerDataResult(rd))
}

// RefundPaymentRequest is the wire shape RefundPayment accepts.
type RefundPaymentRequest struct {
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Currency string  `json:"currency" validate:"required,len=3"`
	Reason   string  `json:"reason"`
}

// RefundPayment refunds a charged (or partially charged) attempt, in full
// or in part.
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	providerName := strings.ToLower(chi.URLParam(r, "provider"))
	attemptID := chi.URLParam(r, "paymentID")
	if attemptID == "" {
		response.Error(w, http.StatusBadRequest, "Missing payment ID", nil)
		return
	}

	var req RefundPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	conn, _, err := h.resolveConnector(r, providerName)
	if err != nil {
		response.Error(w, statusForError(err), "Provider unavailable", err)
		return
	}

	release, err := h.acquireLock(ctx, attemptID)
	if err != nil {
		response.Error(w, statusForError(err), "Could not acquire intent lock", err)
		return
	}
	defer release()

	rd := &flow.RouterData{
		AttemptID:   attemptID,
		ConnectorID: providerName,
		Request:     &flow.RefundRequest{Amount: money.FromMajor(req.Amount, req.Currency), Reason: req.Reason},
	}
	if err := h.executor.Run(ctx, flow.NewRefundOperation(), conn, h.store, rd); err != nil {
		response.Error(w, statusForError(err), "Failed to refund payment", err)
		return
	}

	response.Success(w, http.StatusOK, "Payment refunded", routerDataResult(rd))
}

// HandleCallback completes an authorize call that suspended on an external
// redirect/3DS step.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	providerName := strings.ToLower(chi.URLParam(r, "provider"))

	attemptID := r.URL.Query().Get("paymentId")
	if attemptID == "" {
		attemptID = r.URL.Query().Get("attemptId")
	}
	if attemptID == "" {
		response.Error(w, http.StatusBadRequest, "Missing payment ID", nil)
		return
	}

	if err := r.ParseForm(); err != nil {
		response.Error(w, http.StatusBadRequest, "Failed to parse form data", err)
		return
	}
	redirectParams := make(map[string]string)
	for key, values := range r.Form {
		if len(values) > 0 {
			redirectParams[key] = values[0]
		}
	}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			redirectParams[key] = values[0]
		}
	}

	conn, _, err := h.resolveConnector(r, providerName)
	if err != nil {
		response.Error(w, statusForError(err), "Provider unavailable", err)
		return
	}

	rd := &flow.RouterData{
		AttemptID:   attemptID,
		ConnectorID: providerName,
		Request: &flow.CompleteAuthorizeRequest{
			ConnectorTransactionID: redirectParams["connectorTransactionId"],
			RedirectParams:         redirectParams,
		},
	}

	originalCallbackURL := r.URL.Query().Get("originalCallbackUrl")
	if err := h.executor.Run(ctx, flow.NewCompleteAuthorizeOperation(), conn, h.store, rd); err != nil {
		h.redirectOrError(w, r, originalCallbackURL, err)
		return
	}
	h.redirectOrSuccess(w, r, originalCallbackURL, rd)
}

func (h *PaymentHandler) redirectOrSuccess(w http.ResponseWriter, r *http.Request, originalCallbackURL string, rd *flow.RouterData) {
	result := routerDataResult(rd)

	if successURL := r.URL.Query().Get("successUrl"); successURL != "" {
		redirectURL := fmt.Sprintf("%s?attemptId=%s&status=%s&transactionId=%s",
			successURL, result.AttemptID, result.AttemptStatus, result.ConnectorTransactionID)
		http.Redirect(w, r, redirectURL, http.StatusFound)
		return
	}

	if originalCallbackURL != "" {
		redirectURL := fmt.Sprintf("%s?success=true&attemptId=%s&status=%s&transactionId=%s",
			originalCallbackURL, result.AttemptID, result.AttemptStatus, result.ConnectorTransactionID)
		http.Redirect(w, r, redirectURL, http.StatusFound)
		return
	}

	response.Success(w, http.StatusOK, "Payment completed", result)
}

func (h *PaymentHandler) redirectOrError(w http.ResponseWriter, r *http.Request, originalCallbackURL string, err error) {
	errorCode := string(apperr.Of(err))

	if errorURL := r.URL.Query().Get("errorUrl"); errorURL != "" {
		redirectURL := fmt.Sprintf("%s?error=%s&errorCode=%s", errorURL, err.Error(), errorCode)
		http.Redirect(w, r, redirectURL, http.StatusFound)
		return
	}

	if originalCallbackURL != "" {
		redirectURL := fmt.Sprintf("%s?success=false&error=%s&errorCode=%s", originalCallbackURL, err.Error(), errorCode)
		http.Redirect(w, r, redirectURL, http.StatusFound)
		return
	}

	response.Error(w, statusForError(err), "Failed to complete payment", err)
}

// webhookSignatureHeaders maps a connector id to the HTTP header its
// webhook signature travels in; connectors not listed use the pack's
// common default (confirmed against providers/ozanpay, providers/stripe).
var webhookSignatureHeaders = map[string]string{
	"stripe": "Stripe-Signature",
}

func webhookSignatureHeader(connectorID string) string {
	if header, ok := webhookSignatureHeaders[connectorID]; ok {
		return header
	}
	return "X-Signature"
}

// HandleWebhook ingests an inbound connector webhook through the
// verification/dedupe/sync pipeline. It always acknowledges with 200 once
// the body is readable, except on signature verification failure, so a
// transient internal error doesn't trigger a connector retry storm for an
// event that was never actually our fault to reject.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	providerName := strings.ToLower(chi.URLParam(r, "provider"))

	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		tenantID = r.Header.Get("X-Tenant-ID")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Failed to read webhook body", err)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	delivery := webhook.Delivery{
		ConnectorID:        providerName,
		MerchantID:         tenantID,
		Headers:            headers,
		Body:               body,
		SignatureHeaderKey: webhookSignatureHeader(providerName),
	}

	if err := h.webhooks.Ingest(ctx, delivery); err != nil {
		if apperr.Is(err, apperr.KindWebhookVerification) {
			response.Error(w, http.StatusUnauthorized, "Webhook verification failed", err)
			return
		}
		response.Error(w, statusForError(err), "Webhook processing failed", err)
		return
	}

	response.Success(w, http.StatusOK, "Webhook processed", map[string]string{"status": "accepted"})
}
