// Package payten implements connector.Connector for the Payten
// (MerchantSafeUnipay) gateway, replacing the teacher's provider/payten
// package. Hosted-page session tokens and 3D Secure redirection are out
// of scope here (the threeds package owns that generically); this
// connector covers the direct SALE/VOID/REFUND/QUERYTRANSACTION form
// actions.
package payten

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

const (
	sandboxURL    = "https://test.merchantsafeunipay.com/msu/api/v2"
	productionURL = "https://merchantsafeunipay.com/msu/api/v2"

	actionSale             = "SALE"
	actionVoid             = "VOID"
	actionRefund           = "REFUND"
	actionQueryTransaction = "QUERYTRANSACTION"

	currencyCodeTRY = "TRY"
)

// Payten implements connector.Connector against MerchantSafeUnipay's
// form-based gateway, grounded on provider/payten/payten.go's
// buildSessionTokenRequest/buildVoidRequest/buildRefundRequest/
// calculateHash: every flow is one ACTION value inside a
// form-urlencoded body, signed with a SHA-512 hash over the params
// sorted case-insensitively by key, pipe-joined, with the secret key
// appended, rather than Ziraat's whole-JSON-body HMAC.
type Payten struct {
	merchant         string
	merchantUser     string
	merchantPassword string
	secretKey        string
	isProduction     bool
}

// New builds a Payten connector from its merchant credentials.
func New(merchant, merchantUser, merchantPassword, secretKey string, isProduction bool) *Payten {
	return &Payten{merchant: merchant, merchantUser: merchantUser, merchantPassword: merchantPassword, secretKey: secretKey, isProduction: isProduction}
}

func (p *Payten) ID() string { return "payten" }

func (p *Payten) resolvedBaseURL() string {
	if p.isProduction {
		return productionURL
	}
	return sandboxURL
}

func (p *Payten) Capability() connector.Capability {
	return connector.Capability{
		Name:                "payten",
		BaseURL:             p.resolvedBaseURL(),
		AuthShape:           connector.AuthSignatureKey,
		AmountUnit:          connector.AmountMajorUnits,
		SupportedMethods:    []string{"card"},
		SupportedCaptures:   []string{"automatic"},
		SupportedCurrencies: []string{"TRY"},
		Supports3DS:         true,
		SuccessStatusCodes:  []int{200},
	}
}

func (p *Payten) GetHeaders(ctx context.Context, flow string, authHeaders map[string]string) (map[string]string, error) {
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range authHeaders {
		headers[k] = v
	}
	return headers, nil
}

func (p *Payten) GetContentType(flow string) connector.RequestContent {
	return connector.ContentFormURLEncoded
}

// Payten posts every action to the same API endpoint; the ACTION field
// inside the form body selects the operation.
func (p *Payten) GetURL(ctx context.Context, flow string, base string) (string, error) {
	switch flow {
	case "authorize", "create", "void", "refund", "sync":
		return base, nil
	default:
		return "", apperr.New(apperr.KindInvalidRequest, "payten: unsupported flow").With("flow", flow)
	}
}

// AuthorizeRequest is the neutral payload this connector's GetRequestBody
// expects.
type AuthorizeRequest struct {
	Amount            float64
	MerchantPaymentID string
	ConnectorTxnID    string // merchantPaymentId, for void/refund/sync
	RefundAmount      float64
}

func (p *Payten) baseParams(action string) map[string]string {
	return map[string]string{
		"ACTION":           action,
		"MERCHANT":         p.merchant,
		"MERCHANTUSER":     p.merchantUser,
		"MERCHANTPASSWORD": p.merchantPassword,
	}
}

func (p *Payten) paramsFor(flow string, req *AuthorizeRequest) map[string]string {
	switch flow {
	case "authorize", "create":
		params := p.baseParams(actionSale)
		params["MERCHANTPAYMENTID"] = req.MerchantPaymentID
		params["AMOUNT"] = fmt.Sprintf("%.2f", req.Amount)
		params["CURRENCY"] = currencyCodeTRY
		return params
	case "void":
		params := p.baseParams(actionVoid)
		params["MERCHANTPAYMENTID"] = req.ConnectorTxnID
		return params
	case "refund":
		amt := req.RefundAmount
		if amt == 0 {
			amt = req.Amount
		}
		params := p.baseParams(actionRefund)
		params["MERCHANTPAYMENTID"] = req.ConnectorTxnID
		params["AMOUNT"] = fmt.Sprintf("%.2f", amt)
		params["CURRENCY"] = currencyCodeTRY
		return params
	default: // sync
		params := p.baseParams(actionQueryTransaction)
		params["MERCHANTPAYMENTID"] = req.ConnectorTxnID
		return params
	}
}

func (p *Payten) GetRequestBody(ctx context.Context, flow string, data any) ([]byte, error) {
	req, ok := data.(*AuthorizeRequest)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "payten: request payload has wrong shape")
	}
	params := p.paramsFor(flow, req)
	params["HASH"] = p.calculateHash(params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return []byte(values.Encode()), nil
}

// calculateHash reproduces provider/payten/payten.go's calculateHash:
// sorted (case-insensitive) pipe-joined param values, with `|`/`\`
// escaped, secret key appended, SHA-512 hex digest.
func (p *Payten) calculateHash(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		lowerKey := strings.ToLower(k)
		if lowerKey != "hash" && lowerKey != "encoding" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return strings.ToLower(keys[i]) < strings.ToLower(keys[j]) })

	var b strings.Builder
	escape := func(s string) string {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		return strings.ReplaceAll(s, "|", "\\|")
	}
	for _, key := range keys {
		b.WriteString(escape(params[key]))
		b.WriteString("|")
	}
	b.WriteString(escape(p.secretKey))

	sum := sha512.Sum512([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (p *Payten) BuildRequest(ctx context.Context, flow string, data any, base string, authHeaders map[string]string) (*connector.HTTPRequest, error) {
	urlStr, err := p.GetURL(ctx, flow, base)
	if err != nil {
		return nil, err
	}
	body, err := p.GetRequestBody(ctx, flow, data)
	if err != nil {
		return nil, err
	}
	headers, err := p.GetHeaders(ctx, flow, authHeaders)
	if err != nil {
		return nil, err
	}
	return &connector.HTTPRequest{Method: "POST", URL: urlStr, Headers: headers, Content: connector.ContentFormURLEncoded, Body: body}, nil
}

func (p *Payten) parseFormResponse(body []byte) (map[string]string, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "payten: decode form response")
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out, nil
}

func (p *Payten) HandleResponse(ctx context.Context, flowName string, resp *connector.HTTPResponse) (any, error) {
	fields, err := p.parseFormResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	if fields["PROCRETURNCODE"] != "00" && fields["RETURNCODE"] != "00" {
		return nil, p.BuildErrorResponse(ctx, flowName, fields)
	}

	switch flowName {
	case "authorize", "create":
		return &flow.AuthorizeResponse{Status: statemachine.Charged, ConnectorTransactionID: fields["MERCHANTPAYMENTID"]}, nil
	case "void":
		return &flow.VoidResponse{Status: statemachine.Voided}, nil
	case "sync":
		return &flow.SyncResponse{Status: statemachine.Charged}, nil
	case "refund":
		amountMajor, _ := strconv.ParseFloat(fields["AMOUNT"], 64)
		return &flow.RefundResponse{Status: statemachine.RefundSuccess, RefundedAmount: money.FromMajor(amountMajor, currencyCodeTRY)}, nil
	default:
		return nil, apperr.New(apperr.KindInvalidRequest, "payten: unsupported flow").With("flow", flowName)
	}
}

func (p *Payten) GetErrorResponse(ctx context.Context, flow string, resp *connector.HTTPResponse) (any, error) {
	return p.parseFormResponse(resp.Body)
}

func (p *Payten) BuildErrorResponse(ctx context.Context, flow string, nativeErr any) error {
	fields, ok := nativeErr.(map[string]string)
	if !ok {
		return apperr.New(apperr.KindConnectorPermanent, "payten: unrecognized error shape")
	}
	code := fields["PROCRETURNCODE"]
	if code == "" {
		code = fields["RETURNCODE"]
	}
	kind := apperr.KindConnectorPermanent
	if code == "" || code == "99" {
		kind = apperr.KindConnectorTransient
	}
	msg := fields["ERRMSG"]
	if msg == "" {
		msg = "payten: request failed"
	}
	return apperr.New(kind, msg).With("payten_code", code)
}
