// Package iyzico implements connector.Connector for iyzico, replacing the
// teacher's provider/iyzico package.
package iyzico

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

const iyzicoBaseURL = "https://api.iyzipay.com"

// Iyzico implements connector.Connector against iyzico's REST API, grounded
// on provider/iyzico/iyzico.go's sendRequest/generateAuthString pair: the
// IYZWS HMAC-SHA1 auth scheme signs apiKey+uri+sortedBody+secretKey, which
// means (unlike Stripe's static bearer header) the Authorization header
// cannot be computed until the request body is known. BuildRequest computes
// it directly instead of going through GetHeaders, which only covers
// headers that don't depend on the body.
type Iyzico struct {
	apiKey    string
	secretKey string
}

// NewIyzico builds an Iyzico connector from its API key pair.
func NewIyzico(apiKey, secretKey string) *Iyzico {
	return &Iyzico{apiKey: apiKey, secretKey: secretKey}
}

func (c *Iyzico) ID() string { return "iyzico" }

func (c *Iyzico) Capability() connector.Capability {
	return connector.Capability{
		Name:                "iyzico",
		BaseURL:             iyzicoBaseURL,
		AuthShape:           connector.AuthSignatureKey,
		AmountUnit:          connector.AmountMajorUnits,
		SupportedMethods:    []string{"card"},
		SupportedCaptures:   []string{"automatic", "manual"},
		SupportedCurrencies: []string{"TRY", "USD", "EUR"},
		SuccessStatusCodes:  []int{200},
		Supports3DS:         true,
	}
}

func (c *Iyzico) GetHeaders(ctx context.Context, flow string, authHeaders map[string]string) (map[string]string, error) {
	headers := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
	for k, v := range authHeaders {
		headers[k] = v
	}
	return headers, nil
}

func (c *Iyzico) GetContentType(flow string) connector.RequestContent { return connector.ContentJSON }

func (c *Iyzico) GetURL(ctx context.Context, flow string, baseURL string) (string, error) {
	switch flow {
	case "authorize", "create":
		return baseURL + "/payment/auth", nil
	case "capture":
		return baseURL + "/payment/capture", nil
	case "void":
		return baseURL + "/payment/cancel", nil
	case "refund":
		return baseURL + "/payment/refund", nil
	case "sync":
		return baseURL + "/payment/detail", nil
	default:
		return "", apperr.New(apperr.KindInvalidRequest, "iyzico: unsupported flow").With("flow", flow)
	}
}

// AuthorizeRequest is the neutral payload this connector's GetRequestBody
// expects, carrying only the fields sendPaymentRequest/mapToIyzicoPaymentRequest
// actually needs for the flows this engine drives (buyer/basket-item detail
// stays in the merchant's own records, not the flow engine's RouterData).
type AuthorizeRequest struct {
	ConversationID  string
	Price           string
	PaidPrice       string
	Currency        string
	Installment     int
	PaymentCardToken string
	ConnectorTxnID  string // paymentId, for capture/void/refund/sync
}

func (c *Iyzico) GetRequestBody(ctx context.Context, flow string, data any) ([]byte, error) {
	req, ok := data.(*AuthorizeRequest)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "iyzico: request payload has wrong shape")
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.New().String()
	}

	payload := map[string]any{
		"locale":         "en",
		"conversationId": req.ConversationID,
	}
	switch flow {
	case "authorize", "create":
		payload["price"] = req.Price
		payload["paidPrice"] = req.PaidPrice
		payload["currency"] = req.Currency
		payload["installment"] = req.Installment
		payload["paymentCard"] = map[string]any{"cardToken": req.PaymentCardToken}
	case "capture", "void", "refund", "sync":
		payload["paymentId"] = req.ConnectorTxnID
		if flow == "refund" {
			payload["price"] = req.PaidPrice
		}
	}
	return json.Marshal(payload)
}

func (c *Iyzico) BuildRequest(ctx context.Context, flow string, data any, baseURL string, authHeaders map[string]string) (*connector.HTTPRequest, error) {
	reqURL, err := c.GetURL(ctx, flow, baseURL)
	if err != nil {
		return nil, err
	}
	body, err := c.GetRequestBody(ctx, flow, data)
	if err != nil {
		return nil, err
	}
	headers, err := c.GetHeaders(ctx, flow, authHeaders)
	if err != nil {
		return nil, err
	}

	uriPath := strings.TrimPrefix(reqURL, baseURL)
	headers["Authorization"] = c.generateAuthHeader(uriPath, body)

	return &connector.HTTPRequest{
		Method:  "POST",
		URL:     reqURL,
		Headers: headers,
		Content: connector.ContentJSON,
		Body:    body,
	}, nil
}

// generateAuthHeader reproduces provider/iyzico/iyzico.go's generateAuthString:
// HMAC-SHA1 over apiKey+uri+sortAndConcatRequest(body)+secretKey, base64
// encoded and wrapped in the IYZWS scheme.
func (c *Iyzico) generateAuthHeader(uri string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(c.secretKey))
	mac.Write([]byte(c.apiKey + uri + sortAndConcatFields(body) + c.secretKey))
	digest := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("IYZWS %s:%s", c.apiKey, digest)
}

// sortAndConcatFields sorts the request's top-level JSON keys and
// concatenates "key=value" pairs, matching iyzico's canonicalization rule
// for the HMAC input.
func sortAndConcatFields(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%v,", k, fields[k])
	}
	return sb.String()
}

// mapAttemptStatus translates iyzico's "success"/"failure" vocabulary,
// which carries no finer-grained intermediate states, into AttemptStatus.
func mapAttemptStatus(flowName, status string) statemachine.AttemptStatus {
	if status != "success" {
		return statemachine.AuthorizationFailed
	}
	switch flowName {
	case "capture":
		return statemachine.Authorized
	case "void":
		return statemachine.Voided
	default:
		return statemachine.Charged
	}
}

func (c *Iyzico) HandleResponse(ctx context.Context, flowName string, resp *connector.HTTPResponse) (any, error) {
	var payload struct {
		Status       string `json:"status"`
		PaymentID    string `json:"paymentId"`
		PaidPrice    string `json:"paidPrice"`
		Currency     string `json:"currency"`
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "iyzico: decode response")
	}
	if payload.Status == "failure" {
		return nil, apperr.New(apperr.KindConnectorPermanent, payload.ErrorMessage).With("iyzico_code", payload.ErrorCode)
	}

	currency := payload.Currency
	if currency == "" {
		currency = "TRY"
	}
	paidPrice, _ := strconv.ParseFloat(payload.PaidPrice, 64)
	amount := money.FromMajor(paidPrice, currency)

	switch flowName {
	case "authorize", "create":
		return &flow.AuthorizeResponse{Status: mapAttemptStatus(flowName, payload.Status), ConnectorTransactionID: payload.PaymentID}, nil
	case "capture":
		return &flow.CaptureResponse{Status: mapAttemptStatus(flowName, payload.Status), CapturedAmount: amount}, nil
	case "void":
		return &flow.VoidResponse{Status: mapAttemptStatus(flowName, payload.Status)}, nil
	case "sync":
		return &flow.SyncResponse{Status: mapAttemptStatus(flowName, payload.Status)}, nil
	case "refund":
		return &flow.RefundResponse{Status: statemachine.RefundSuccess, RefundedAmount: amount}, nil
	default:
		return nil, apperr.New(apperr.KindInvalidRequest, "iyzico: unsupported flow").With("flow", flowName)
	}
}

func (c *Iyzico) GetErrorResponse(ctx context.Context, flow string, resp *connector.HTTPResponse) (any, error) {
	var payload struct {
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "iyzico: decode error response")
	}
	return &payload, nil
}

func (c *Iyzico) BuildErrorResponse(ctx context.Context, flow string, nativeErr any) error {
	e, ok := nativeErr.(*struct {
		ErrorCode    string `json:"errorCode"`
		ErrorMessage string `json:"errorMessage"`
	})
	if !ok {
		return apperr.New(apperr.KindConnectorPermanent, "iyzico: unrecognized error shape")
	}
	return apperr.New(apperr.KindConnectorPermanent, e.ErrorMessage).With("iyzico_code", e.ErrorCode)
}

// VerifySignature checks iyzico's webhook HMAC-SHA256 header, per
// provider/iyzico/iyzico.go's ValidateWebhook stub (which the teacher left
// unimplemented) generalized into the real check webhook.Verify performs.
func (c *Iyzico) VerifySignature(ctx context.Context, headers map[string]string, body []byte, secret []byte) error {
	sig := headers["X-Iyz-Signature"]
	if sig == "" {
		return apperr.New(apperr.KindWebhookVerification, "iyzico: missing X-Iyz-Signature header")
	}
	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return apperr.New(apperr.KindWebhookVerification, "iyzico: signature mismatch")
	}
	return nil
}

func (c *Iyzico) GetWebhookObjectReferenceID(ctx context.Context, body []byte) (string, error) {
	var payload struct {
		PaymentID string `json:"paymentId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", apperr.Wrap(apperr.KindWebhookVerification, err, "iyzico: decode webhook body")
	}
	return payload.PaymentID, nil
}

func (c *Iyzico) GetWebhookEventType(ctx context.Context, body []byte) (connector.WebhookEventClass, error) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return connector.WebhookUnknown, apperr.Wrap(apperr.KindWebhookVerification, err, "iyzico: decode webhook body")
	}
	switch payload.Status {
	case "SUCCESS":
		return connector.WebhookPaymentSucceeded, nil
	case "FAILURE":
		return connector.WebhookPaymentFailed, nil
	default:
		return connector.WebhookUnknown, nil
	}
}
