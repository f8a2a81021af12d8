// Package payu implements connector.Connector for PayU Turkey, replacing
// the teacher's provider/payu package.
package payu

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

const (
	sandboxURL    = "https://secure-test.payu.tr"
	productionURL = "https://secure.payu.tr"

	sandboxRedirectHost    = "secure-test.payu.tr"
	productionRedirectHost = "secure.payu.tr"

	tokenEndpoint = "/pl/standard/user/oauth/authorize"

	statusSuccess    = "SUCCESS"
	statusPending    = "PENDING"
	statusFailed     = "FAILED"
	statusCancelled  = "CANCELLED"
	statusRefunded   = "REFUNDED"
	statusAuthorized = "AUTHORIZED"
)

// PayU implements connector.Connector against PayU Turkey's REST API,
// grounded on provider/payu/payu.go's generateSignature/
// calculateWebhookSignature pair: the request signature is a SHA-256 hex
// digest over merchantId|amount|orderId|secretKey (a narrower field set
// than the full request body, unlike Iyzico's sort-and-concat-everything
// scheme). Unlike that, auth for the call itself is a real OAuth2
// client_credentials bearer token (merchantID/secretKey act as
// client_id/client_secret), fetched through connector.TokenAuthenticator
// rather than sent statically on every request.
type PayU struct {
	merchantID   string
	secretKey    string
	isProduction bool
}

// New builds a PayU connector from its merchant ID and secret key.
func New(merchantID, secretKey string, isProduction bool) *PayU {
	return &PayU{merchantID: merchantID, secretKey: secretKey, isProduction: isProduction}
}

func (p *PayU) ID() string { return "payu" }

func (p *PayU) resolvedBaseURL() string {
	if p.isProduction {
		return productionURL
	}
	return sandboxURL
}

// Capability declares AllowedRedirectHosts restricted to PayU's own hosted
// payment-page domain: PayU's authorize response carries its own
// RedirectURL field rather than a URL this connector constructs itself
// (unlike PayTR's fixed iframe path), so nothing else here constrains what
// host that URL can point to without this allowlist.
func (p *PayU) Capability() connector.Capability {
	redirectHost := productionRedirectHost
	if !p.isProduction {
		redirectHost = sandboxRedirectHost
	}
	return connector.Capability{
		Name:                 "payu",
		BaseURL:              p.resolvedBaseURL(),
		AuthShape:            connector.AuthOAuth,
		AmountUnit:           connector.AmountMajorUnits,
		SupportedMethods:     []string{"card"},
		SupportedCaptures:    []string{"automatic"},
		SupportedCurrencies:  []string{"TRY"},
		Supports3DS:          true,
		SuccessStatusCodes:   []int{200, 201},
		AllowedRedirectHosts: []string{redirectHost},
		SupportedWebhooks: []connector.WebhookEventClass{
			connector.WebhookPaymentSucceeded,
			connector.WebhookPaymentFailed,
			connector.WebhookRefundSucceeded,
		},
	}
}

func (p *PayU) GetHeaders(ctx context.Context, flow string, authHeaders map[string]string) (map[string]string, error) {
	headers := map[string]string{
		"Accept":       "application/json",
		"User-Agent":   "payflow/1.0",
		"Content-Type": "application/json",
	}
	for k, v := range authHeaders {
		headers[k] = v
	}
	return headers, nil
}

// BuildTokenRequest implements connector.TokenAuthenticator: a client_credentials
// grant against PayU's OAuth endpoint, merchantID/secretKey standing in for
// client_id/client_secret.
func (p *PayU) BuildTokenRequest(ctx context.Context, baseURL string) (*connector.HTTPRequest, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.merchantID},
		"client_secret": {p.secretKey},
	}
	return &connector.HTTPRequest{
		Method:  "POST",
		URL:     baseURL + tokenEndpoint,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Content: connector.ContentFormURLEncoded,
		Body:    []byte(form.Encode()),
	}, nil
}

type payuTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ParseTokenResponse implements connector.TokenAuthenticator.
func (p *PayU) ParseTokenResponse(ctx context.Context, resp *connector.HTTPResponse) (connector.TokenResult, error) {
	var payload payuTokenResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return connector.TokenResult{}, apperr.Wrap(apperr.KindAuthTokenUnavailable, err, "payu: decode token response")
	}
	if payload.AccessToken == "" {
		return connector.TokenResult{}, apperr.New(apperr.KindAuthTokenUnavailable, "payu: token response missing access_token")
	}
	return connector.TokenResult{AccessToken: payload.AccessToken, ExpiresIn: time.Duration(payload.ExpiresIn) * time.Second}, nil
}

func (p *PayU) GetContentType(flow string) connector.RequestContent { return connector.ContentJSON }

func (p *PayU) GetURL(ctx context.Context, flow string, base string) (string, error) {
	switch flow {
	case "authorize", "create":
		return base + "/api/payment", nil
	case "authorize_3ds", "create_3ds":
		return base + "/api/payment/3d", nil
	case "sync":
		return base + "/api/payment/%s", nil
	case "refund":
		return base + "/api/refund", nil
	case "void":
		return base + "/api/cancel", nil
	default:
		return "", apperr.New(apperr.KindInvalidRequest, "payu: unsupported flow").With("flow", flow)
	}
}

// AuthorizeRequest is the neutral payload this connector's GetRequestBody
// expects.
type AuthorizeRequest struct {
	Amount         float64
	Currency       string
	ReferenceID    string
	Description    string
	ConversationID string
	ConnectorTxnID string // paymentId, for sync/refund/void
	RefundAmount   float64
	Reason         string
}

func (p *PayU) GetRequestBody(ctx context.Context, flow string, data any) ([]byte, error) {
	req, ok := data.(*AuthorizeRequest)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "payu: request payload has wrong shape")
	}
	switch flow {
	case "authorize", "create", "authorize_3ds", "create_3ds":
		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = uuid.New().String()
		}
		body := map[string]any{
			"merchantId":     p.merchantID,
			"amount":         fmt.Sprintf("%.2f", req.Amount),
			"currency":       req.Currency,
			"orderId":        req.ReferenceID,
			"description":    req.Description,
			"language":       "tr",
			"timestamp":      time.Now().Unix(),
			"conversationId": conversationID,
		}
		body["signature"] = p.generateSignature(body)
		return json.Marshal(body)
	case "refund":
		body := map[string]any{
			"merchantId":  p.merchantID,
			"paymentId":   req.ConnectorTxnID,
			"amount":      fmt.Sprintf("%.2f", req.RefundAmount),
			"reason":      req.Reason,
			"description": req.Description,
			"currency":    req.Currency,
			"timestamp":   time.Now().Unix(),
		}
		body["signature"] = p.generateSignature(body)
		return json.Marshal(body)
	case "void":
		body := map[string]any{
			"merchantId": p.merchantID,
			"paymentId":  req.ConnectorTxnID,
			"timestamp":  time.Now().Unix(),
		}
		body["signature"] = p.generateSignature(body)
		return json.Marshal(body)
	default:
		return nil, nil
	}
}

func (p *PayU) method(flow string) string {
	if flow == "sync" {
		return "GET"
	}
	return "POST"
}

func (p *PayU) BuildRequest(ctx context.Context, flow string, data any, base string, authHeaders map[string]string) (*connector.HTTPRequest, error) {
	urlTemplate, err := p.GetURL(ctx, flow, base)
	if err != nil {
		return nil, err
	}
	req, _ := data.(*AuthorizeRequest)
	finalURL := urlTemplate
	if req != nil && req.ConnectorTxnID != "" && flow == "sync" {
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

// generateSignature reproduces provider/payu/payu.go's generateSignature:
// a SHA-256 hex digest over merchantId|amount|orderId|secretKey.
func (p *PayU) generateSignature(data map[string]any) string {
	signatureData := fmt.Sprintf("%s|%v|%v|%s", p.merchantID, data["amount"], data["orderId"], p.secretKey)
	hash := sha256.Sum256([]byte(signatureData))
	return hex.EncodeToString(hash[:])
}

type payuResponse struct {
	Status        string  `json:"status"`
	PaymentID     string  `json:"paymentId"`
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	ErrorCode     string  `json:"errorCode,omitempty"`
	ErrorMessage  string  `json:"errorMessage,omitempty"`
	RedirectURL   string  `json:"redirectUrl,omitempty"`
}

// mapAttemptStatus translates PayU's own status vocabulary into
// AttemptStatus.
func mapAttemptStatus(status string) statemachine.AttemptStatus {
	switch status {
	case statusSuccess, statusAuthorized:
		return statemachine.Charged
	case statusPending:
		return statemachine.Pending
	case statusFailed:
		return statemachine.AuthorizationFailed
	case statusCancelled:
		return statemachine.Voided
	default:
		return statemachine.Unresolved
	}
}

func (p *PayU) HandleResponse(ctx context.Context, flowName string, resp *connector.HTTPResponse) (any, error) {
	var payload payuResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "payu: decode response")
	}
	switch payload.Status {
	case statusSuccess, statusAuthorized, statusPending, statusRefunded:
		currency := payload.Currency
		if currency == "" {
			currency = "TRY"
		}
		switch flowName {
		case "authorize", "create", "authorize_3ds", "create_3ds":
			return &flow.AuthorizeResponse{
				Status:                 mapAttemptStatus(payload.Status),
				ConnectorTransactionID: payload.PaymentID,
				RedirectURL:            payload.RedirectURL,
			}, nil
		case "sync":
			return &flow.SyncResponse{Status: mapAttemptStatus(payload.Status)}, nil
		case "void":
			return &flow.VoidResponse{Status: statemachine.Voided}, nil
		case "refund":
			status := statemachine.RefundSuccess
			if payload.Status == statusPending {
				status = statemachine.RefundPending
			}
			return &flow.RefundResponse{Status: status, RefundedAmount: money.FromMajor(payload.Amount, currency)}, nil
		default:
			return nil, apperr.New(apperr.KindInvalidRequest, "payu: unsupported flow").With("flow", flowName)
		}
	default:
		return nil, p.BuildErrorResponse(ctx, flowName, &payload)
	}
}

func (p *PayU) GetErrorResponse(ctx context.Context, flow string, resp *connector.HTTPResponse) (any, error) {
	var payload payuResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "payu: decode error response")
	}
	return &payload, nil
}

func (p *PayU) BuildErrorResponse(ctx context.Context, flow string, nativeErr any) error {
	payload, ok := nativeErr.(*payuResponse)
	if !ok {
		return apperr.New(apperr.KindConnectorPermanent, "payu: unrecognized error shape")
	}
	kind := apperr.KindConnectorPermanent
	switch payload.ErrorCode {
	case "INSUFFICIENT_FUNDS", "SYSTEM_ERROR", "":
		kind = apperr.KindConnectorTransient
	}
	msg := payload.ErrorMessage
	if msg == "" {
		msg = "payu: request failed"
	}
	return apperr.New(kind, msg).With("payu_code", payload.ErrorCode)
}

// VerifySignature reproduces provider/payu/payu.go's
// calculateWebhookSignature: SHA-256 hex digest over secretKey+payload,
// compared against X-PayU-Signature.
func (p *PayU) VerifySignature(ctx context.Context, headers map[string]string, body []byte, secret []byte) error {
	sig := headers["X-PayU-Signature"]
	if sig == "" {
		return apperr.New(apperr.KindWebhookVerification, "payu: missing X-PayU-Signature header")
	}
	hash := sha256.Sum256(append(append([]byte{}, secret...), body...))
	expected := hex.EncodeToString(hash[:])
	if expected != sig {
		return apperr.New(apperr.KindWebhookVerification, "payu: signature mismatch")
	}
	return nil
}

func (p *PayU) GetWebhookObjectReferenceID(ctx context.Context, body []byte) (string, error) {
	var payload struct {
		PaymentID string `json:"paymentId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", apperr.Wrap(apperr.KindWebhookVerification, err, "payu: decode webhook body")
	}
	return payload.PaymentID, nil
}

func (p *PayU) GetWebhookEventType(ctx context.Context, body []byte) (connector.WebhookEventClass, error) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return connector.WebhookUnknown, apperr.Wrap(apperr.KindWebhookVerification, err, "payu: decode webhook body")
	}
	switch payload.Status {
	case statusSuccess, statusAuthorized:
		return connector.WebhookPaymentSucceeded, nil
	case statusFailed, statusCancelled:
		return connector.WebhookPaymentFailed, nil
	case statusRefunded:
		return connector.WebhookRefundSucceeded, nil
	default:
		return connector.WebhookUnknown, nil
	}
}
