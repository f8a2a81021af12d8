// Package papara implements connector.Connector for Papara, replacing
// the teacher's provider/papara package.
package papara

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

const (
	sandboxURL    = "https://merchant.test.papara.com"
	productionURL = "https://merchant.papara.com"

	sandboxRedirectHost    = "merchant.test.papara.com"
	productionRedirectHost = "merchant.papara.com"

	statusPending   = "PENDING"
	statusCompleted = "COMPLETED"
	statusRefunded  = "REFUNDED"
	statusFailed    = "FAILED"
	statusCancelled = "CANCELLED"
)

// Papara implements connector.Connector against Papara's REST API, grounded
// on provider/papara/papara.go's addAuthHeaders/generateWebhookSignature
// pair: auth travels as a bare "ApiKey" header (no "Bearer"/"ApiKey "
// prefix scheme like the other connectors), and the webhook signature is
// HMAC-SHA256 over the raw payload keyed by the same API key, base64
// encoded rather than hex.
type Papara struct {
	apiKey       string
	isProduction bool
}

// New builds a Papara connector from its API key and environment flag.
func New(apiKey string, isProduction bool) *Papara {
	return &Papara{apiKey: apiKey, isProduction: isProduction}
}

func (p *Papara) ID() string { return "papara" }

func (p *Papara) resolvedBaseURL() string {
	if p.isProduction {
		return productionURL
	}
	return sandboxURL
}

func (p *Papara) Capability() connector.Capability {
	redirectHost := productionRedirectHost
	if !p.isProduction {
		redirectHost = sandboxRedirectHost
	}
	return connector.Capability{
		Name:                 "papara",
		BaseURL:              p.resolvedBaseURL(),
		AuthShape:            connector.AuthHeaderKey,
		AmountUnit:           connector.AmountMajorUnits,
		SupportedMethods:     []string{"wallet"},
		SupportedCaptures:    []string{"automatic"},
		SupportedCurrencies:  []string{"TRY"},
		SuccessStatusCodes:   []int{200, 201},
		AllowedRedirectHosts: []string{redirectHost},
		SupportedWebhooks: []connector.WebhookEventClass{
			connector.WebhookPaymentSucceeded,
			connector.WebhookPaymentFailed,
			connector.WebhookRefundSucceeded,
		},
	}
}

func (p *Papara) GetHeaders(ctx context.Context, flow string, authHeaders map[string]string) (map[string]string, error) {
	headers := map[string]string{
		"ApiKey":       p.apiKey,
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
	for k, v := range authHeaders {
		headers[k] = v
	}
	return headers, nil
}

func (p *Papara) GetContentType(flow string) connector.RequestContent { return connector.ContentJSON }

func (p *Papara) GetURL(ctx context.Context, flow string, base string) (string, error) {
	switch flow {
	case "authorize", "create":
		return base + "/api/v1/payments", nil
	case "sync":
		return base + "/api/v1/payments?id=%s", nil
	case "refund", "void":
		return base + "/api/v1/payments?id=%s", nil
	default:
		return "", apperr.New(apperr.KindInvalidRequest, "papara: unsupported flow").With("flow", flow)
	}
}

// AuthorizeRequest is the neutral payload this connector's GetRequestBody
// expects.
type AuthorizeRequest struct {
	Amount          float64
	Currency        string
	ReferenceID     string
	Description     string
	ConversationID  string
	ConnectorTxnID  string // paymentId, for sync/refund/void
	RefundAmount    float64
}

func (p *Papara) GetRequestBody(ctx context.Context, flow string, data any) ([]byte, error) {
	req, ok := data.(*AuthorizeRequest)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "papara: request payload has wrong shape")
	}
	switch flow {
	case "authorize", "create":
		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = uuid.New().String()
		}
		return json.Marshal(map[string]any{
			"amount":           req.Amount,
			"referenceId":      req.ReferenceID,
			"orderDescription": req.Description,
			"currency":         req.Currency,
			"conversationId":   conversationID,
		})
	case "refund", "void":
		body := map[string]any{}
		amt := req.RefundAmount
		if amt == 0 {
			amt = req.Amount
		}
		if amt > 0 {
			body["amount"] = amt
		}
		if req.Currency != "" {
			body["currency"] = req.Currency
		}
		return json.Marshal(body)
	default:
		return nil, nil
	}
}

func (p *Papara) method(flow string) string {
	switch flow {
	case "sync":
		return "GET"
	case "refund", "void":
		return "PUT"
	default:
		return "POST"
	}
}

func (p *Papara) BuildRequest(ctx context.Context, flow string, data any, base string, authHeaders map[string]string) (*connector.HTTPRequest, error) {
	urlTemplate, err := p.GetURL(ctx, flow, base)
	if err != nil {
		return nil, err
	}
	req, _ := data.(*AuthorizeRequest)
	finalURL := urlTemplate
	if req != nil && req.ConnectorTxnID != "" && (flow == "sync" || flow == "refund" || flow == "void") {
		finalURL = fmt.Sprintf(urlTemplate, req.ConnectorTxnID)
	}

	var body []byte
	if flow != "sync" {
		body, err = p.GetRequestBody(ctx, flow, data)
		if err != nil {
			return nil, err
		}
	}
	headers, err := p.GetHeaders(ctx, flow, authHeaders)
	if err != nil {
		return nil, err
	}

	return &connector.HTTPRequest{Method: p.method(flow), URL: finalURL, Headers: headers, Content: connector.ContentJSON, Body: body}, nil
}

// paparaResponse is Papara's standard response envelope.
type paparaResponse struct {
	Succeeded bool `json:"succeeded"`
	Data      struct {
		ID         string  `json:"id"`
		PaymentID  string  `json:"paymentId,omitempty"`
		Amount     float64 `json:"amount"`
		Currency   string  `json:"currency"`
		Status     string  `json:"status"`
		PaymentURL string  `json:"paymentUrl,omitempty"`
	} `json:"data,omitempty"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// mapAttemptStatus translates Papara's own status vocabulary into
// AttemptStatus.
func mapAttemptStatus(status string) statemachine.AttemptStatus {
	switch status {
	case statusPending:
		return statemachine.Pending
	case statusCompleted:
		return statemachine.Charged
	case statusCancelled:
		return statemachine.Voided
	case statusFailed:
		return statemachine.AuthorizationFailed
	default:
		return statemachine.Unresolved
	}
}

func (p *Papara) HandleResponse(ctx context.Context, flowName string, resp *connector.HTTPResponse) (any, error) {
	var payload paparaResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "papara: decode response")
	}
	if !payload.Succeeded {
		return nil, p.BuildErrorResponse(ctx, flowName, &payload)
	}

	currency := payload.Data.Currency
	if currency == "" {
		currency = "TRY"
	}
	amount := money.FromMajor(payload.Data.Amount, currency)

	switch flowName {
	case "authorize", "create":
		return &flow.AuthorizeResponse{
			Status:                 mapAttemptStatus(payload.Data.Status),
			ConnectorTransactionID: payload.Data.ID,
			RedirectURL:            payload.Data.PaymentURL,
		}, nil
	case "void":
		return &flow.VoidResponse{Status: statemachine.Voided}, nil
	case "sync":
		return &flow.SyncResponse{Status: mapAttemptStatus(payload.Data.Status)}, nil
	case "refund":
		status := statemachine.RefundSuccess
		if payload.Data.Status == statusPending {
			status = statemachine.RefundPending
		}
		return &flow.RefundResponse{Status: status, RefundedAmount: amount}, nil
	default:
		return nil, apperr.New(apperr.KindInvalidRequest, "papara: unsupported flow").With("flow", flowName)
	}
}

func (p *Papara) GetErrorResponse(ctx context.Context, flow string, resp *connector.HTTPResponse) (any, error) {
	var payload paparaResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "papara: decode error response")
	}
	return &payload, nil
}

func (p *Papara) BuildErrorResponse(ctx context.Context, flow string, nativeErr any) error {
	payload, ok := nativeErr.(*paparaResponse)
	if !ok {
		return apperr.New(apperr.KindConnectorPermanent, "papara: unrecognized error shape")
	}
	kind := apperr.KindConnectorPermanent
	if payload.Error.Code == "" {
		kind = apperr.KindConnectorTransient
	}
	return apperr.New(kind, payload.Error.Message).With("papara_code", payload.Error.Code)
}

// VerifySignature reproduces provider/papara/papara.go's
// generateWebhookSignature: HMAC-SHA256 over the raw payload keyed by the
// API key, base64 encoded, compared against X-Papara-Signature.
func (p *Papara) VerifySignature(ctx context.Context, headers map[string]string, body []byte, secret []byte) error {
	sig := headers["X-Papara-Signature"]
	if sig == "" {
		return apperr.New(apperr.KindWebhookVerification, "papara: missing X-Papara-Signature header")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return apperr.New(apperr.KindWebhookVerification, "papara: signature mismatch")
	}
	return nil
}

func (p *Papara) GetWebhookObjectReferenceID(ctx context.Context, body []byte) (string, error) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", apperr.Wrap(apperr.KindWebhookVerification, err, "papara: decode webhook body")
	}
	return payload.ID, nil
}

func (p *Papara) GetWebhookEventType(ctx context.Context, body []byte) (connector.WebhookEventClass, error) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return connector.WebhookUnknown, apperr.Wrap(apperr.KindWebhookVerification, err, "papara: decode webhook body")
	}
	switch payload.Status {
	case statusCompleted:
		return connector.WebhookPaymentSucceeded, nil
	case statusFailed, statusCancelled:
		return connector.WebhookPaymentFailed, nil
	case statusRefunded:
		return connector.WebhookRefundSucceeded, nil
	default:
		return connector.WebhookUnknown, nil
	}
}
