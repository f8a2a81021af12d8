// Package ozanpay implements connector.Connector for OzanPay, replacing
// the teacher's provider/ozanpay package.
package ozanpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

const baseURL = "https://api.ozan.com"

// OzanPay implements connector.Connector against OzanPay's REST API,
// grounded on provider/ozanpay/ozanpay.go's sendRequest/generateSignature
// pair: the signature covers method+endpoint+timestamp(+body for
// non-GET requests), signed with HMAC-SHA256 and sent as a header
// alongside the timestamp, rather than folded into the URL or body.
type OzanPay struct {
	apiKey     string
	secretKey  string
	merchantID string
}

// New builds an OzanPay connector from its API credentials.
func New(apiKey, secretKey, merchantID string) *OzanPay {
	return &OzanPay{apiKey: apiKey, secretKey: secretKey, merchantID: merchantID}
}

func (o *OzanPay) ID() string { return "ozanpay" }

func (o *OzanPay) Capability() connector.Capability {
	return connector.Capability{
		Name:                "ozanpay",
		BaseURL:             baseURL,
		AuthShape:           connector.AuthSignatureKey,
		AmountUnit:          connector.AmountMajorUnits,
		SupportedMethods:    []string{"card"},
		SupportedCaptures:   []string{"automatic"},
		SupportedCurrencies: []string{"USD", "EUR"},
		SuccessStatusCodes:  []int{200, 201},
	}
}

func (o *OzanPay) GetHeaders(ctx context.Context, flow string, authHeaders map[string]string) (map[string]string, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
		"X-Api-Key":    o.apiKey,
		"X-Merchant-Id": o.merchantID,
	}
	for k, v := range authHeaders {
		headers[k] = v
	}
	return headers, nil
}

func (o *OzanPay) GetContentType(flow string) connector.RequestContent { return connector.ContentJSON }

func (o *OzanPay) method(flow string) string {
	if flow == "sync" {
		return "GET"
	}
	return "POST"
}

func (o *OzanPay) GetURL(ctx context.Context, flow string, base string) (string, error) {
	switch flow {
	case "authorize", "create":
		return base + "/api/v1/payments", nil
	case "refund", "void":
		return base + "/api/v1/refunds", nil
	case "sync":
		return base + "/api/v1/payments/%s", nil
	default:
		return "", apperr.New(apperr.KindInvalidRequest, "ozanpay: unsupported flow").With("flow", flow)
	}
}

// AuthorizeRequest is the neutral payload this connector's GetRequestBody
// expects.
type AuthorizeRequest struct {
	Amount          float64
	Currency        string
	PaymentToken    string
	ConnectorTxnID  string // paymentId, for refund/void/sync
	RefundAmount    float64
}

func (o *OzanPay) GetRequestBody(ctx context.Context, flow string, data any) ([]byte, error) {
	req, ok := data.(*AuthorizeRequest)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "ozanpay: request payload has wrong shape")
	}
	switch flow {
	case "authorize", "create":
		return json.Marshal(map[string]any{
			"amount":       req.Amount,
			"currency":     req.Currency,
			"paymentToken": req.PaymentToken,
			"merchantId":   o.merchantID,
		})
	case "refund", "void":
		amt := req.RefundAmount
		if amt == 0 {
			amt = req.Amount
		}
		return json.Marshal(map[string]any{"paymentId": req.ConnectorTxnID, "amount": amt})
	default:
		return nil, nil
	}
}

func (o *OzanPay) BuildRequest(ctx context.Context, flow string, data any, base string, authHeaders map[string]string) (*connector.HTTPRequest, error) {
	urlTemplate, err := o.GetURL(ctx, flow, base)
	if err != nil {
		return nil, err
	}
	req, _ := data.(*AuthorizeRequest)
	finalURL := urlTemplate
	if req != nil && req.ConnectorTxnID != "" && flow == "sync" {
		finalURL = fmt.Sprintf(urlTemplate, req.ConnectorTxnID)
	}

	body, err := o.GetRequestBody(ctx, flow, data)
	if err != nil {
		return nil, err
	}
	headers, err := o.GetHeaders(ctx, flow, authHeaders)
	if err != nil {
		return nil, err
	}

	method := o.method(flow)
	endpoint := finalURL[len(base):]
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	headers["X-Timestamp"] = timestamp
	headers["X-Signature"] = o.generateSignature(method, endpoint, timestamp, body)

	return &connector.HTTPRequest{Method: method, URL: finalURL, Headers: headers, Content: connector.ContentJSON, Body: body}, nil
}

// generateSignature reproduces provider/ozanpay/ozanpay.go's signature
// scheme: HMAC-SHA256 over method+endpoint+timestamp(+body for non-GET).
func (o *OzanPay) generateSignature(method, endpoint, timestamp string, body []byte) string {
	dataToSign := method + endpoint + timestamp
	if method != "GET" {
		dataToSign += string(body)
	}
	mac := hmac.New(sha256.New, []byte(o.secretKey))
	mac.Write([]byte(dataToSign))
	return hex.EncodeToString(mac.Sum(nil))
}

// mapAttemptStatus translates OzanPay's own status vocabulary into
// AttemptStatus.
func mapAttemptStatus(status string) statemachine.AttemptStatus {
	switch status {
	case "APPROVED", "AUTHORIZED", "CAPTURED":
		return statemachine.Charged
	case "PENDING":
		return statemachine.Pending
	case "DECLINED", "FAILED":
		return statemachine.AuthorizationFailed
	case "VOIDED":
		return statemachine.Voided
	default:
		return statemachine.Unresolved
	}
}

func (o *OzanPay) HandleResponse(ctx context.Context, flowName string, resp *connector.HTTPResponse) (any, error) {
	var payload struct {
		PaymentID string  `json:"paymentId"`
		Status    string  `json:"status"`
		Amount    float64 `json:"amount"`
		Currency  string  `json:"currency"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "ozanpay: decode response")
	}

	currency := payload.Currency
	if currency == "" {
		currency = "USD"
	}

	switch flowName {
	case "authorize", "create":
		return &flow.AuthorizeResponse{Status: mapAttemptStatus(payload.Status), ConnectorTransactionID: payload.PaymentID}, nil
	case "void":
		return &flow.VoidResponse{Status: statemachine.Voided}, nil
	case "sync":
		return &flow.SyncResponse{Status: mapAttemptStatus(payload.Status)}, nil
	case "refund":
		return &flow.RefundResponse{Status: statemachine.RefundSuccess, RefundedAmount: money.FromMajor(payload.Amount, currency)}, nil
	default:
		return nil, apperr.New(apperr.KindInvalidRequest, "ozanpay: unsupported flow").With("flow", flowName)
	}
}

// ErrorResponse is OzanPay's native error envelope.
type ErrorResponse struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (o *OzanPay) GetErrorResponse(ctx context.Context, flow string, resp *connector.HTTPResponse) (any, error) {
	var e ErrorResponse
	if err := json.Unmarshal(resp.Body, &e); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "ozanpay: decode error response")
	}
	return &e, nil
}

func (o *OzanPay) BuildErrorResponse(ctx context.Context, flow string, nativeErr any) error {
	e, ok := nativeErr.(*ErrorResponse)
	if !ok {
		return apperr.New(apperr.KindConnectorPermanent, "ozanpay: unrecognized error shape")
	}
	kind := apperr.KindConnectorPermanent
	if e.ErrorCode == "INSUFFICIENT_FUNDS" || e.ErrorCode == "" {
		kind = apperr.KindConnectorTransient
	}
	return apperr.New(kind, e.ErrorMessage).With("ozanpay_code", e.ErrorCode)
}

// VerifySignature reproduces provider/ozanpay/ozanpay.go's ValidateWebhook
// HMAC-SHA256 check over the raw body.
func (o *OzanPay) VerifySignature(ctx context.Context, headers map[string]string, body []byte, secret []byte) error {
	sig := headers["X-Signature"]
	if sig == "" {
		return apperr.New(apperr.KindWebhookVerification, "ozanpay: missing X-Signature header")
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return apperr.New(apperr.KindWebhookVerification, "ozanpay: signature mismatch")
	}
	return nil
}

func (o *OzanPay) GetWebhookObjectReferenceID(ctx context.Context, body []byte) (string, error) {
	var payload struct {
		PaymentID string `json:"paymentId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", apperr.Wrap(apperr.KindWebhookVerification, err, "ozanpay: decode webhook body")
	}
	return payload.PaymentID, nil
}

func (o *OzanPay) GetWebhookEventType(ctx context.Context, body []byte) (connector.WebhookEventClass, error) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return connector.WebhookUnknown, apperr.Wrap(apperr.KindWebhookVerification, err, "ozanpay: decode webhook body")
	}
	switch payload.Status {
	case "APPROVED", "AUTHORIZED":
		return connector.WebhookPaymentSucceeded, nil
	case "DECLINED", "FAILED":
		return connector.WebhookPaymentFailed, nil
	case "REFUNDED":
		return connector.WebhookRefundSucceeded, nil
	default:
		return connector.WebhookUnknown, nil
	}
}
