// Package ziraat implements connector.Connector for Ziraat Bank's
// MerchantSafeUnipay gateway, replacing the teacher's provider/ziraat
// package. 3D Secure hosted-page redirection is out of scope here (the
// threeds package owns that flow generically); this connector covers the
// direct-API txnCode 1000/2000/2100 calls.
package ziraat

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

const (
	sandboxURL    = "https://test.merchantsafeunipay.com/msu/api/v2"
	productionURL = "https://merchantsafeunipay.com/msu/api/v2"

	txnCodeSale   = "1000"
	txnCodeCancel = "2000"
	txnCodeRefund = "2100"

	currencyCodeTRY = 949
	apiVersion      = "1.00"
)

// Ziraat implements connector.Connector against MerchantSafeUnipay's REST
// API, grounded on provider/ziraat/ziraat.go's buildBaseRequest/
// generateAuthHash pair: every request carries a txnCode selecting the
// operation rather than a distinct URL path, and auth travels as an
// "auth-hash" header computed over the marshaled JSON body with
// HMAC-SHA512, not inside the body itself.
type Ziraat struct {
	merchantSafeID string
	terminalSafeID string
	secretKey      string
	isProduction   bool
}

// New builds a Ziraat connector from its terminal credentials.
func New(merchantSafeID, terminalSafeID, secretKey string, isProduction bool) *Ziraat {
	return &Ziraat{merchantSafeID: merchantSafeID, terminalSafeID: terminalSafeID, secretKey: secretKey, isProduction: isProduction}
}

func (z *Ziraat) ID() string { return "ziraat" }

func (z *Ziraat) resolvedBaseURL() string {
	if z.isProduction {
		return productionURL
	}
	return sandboxURL
}

func (z *Ziraat) Capability() connector.Capability {
	return connector.Capability{
		Name:                "ziraat",
		BaseURL:             z.resolvedBaseURL(),
		AuthShape:           connector.AuthSignatureKey,
		AmountUnit:          connector.AmountMinorUnits,
		SupportedMethods:    []string{"card"},
		SupportedCaptures:   []string{"automatic"},
		SupportedCurrencies: []string{"TRY"},
		Supports3DS:         true,
		SuccessStatusCodes:  []int{200},
	}
}

func (z *Ziraat) GetHeaders(ctx context.Context, flow string, authHeaders map[string]string) (map[string]string, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range authHeaders {
		headers[k] = v
	}
	return headers, nil
}

func (z *Ziraat) GetContentType(flow string) connector.RequestContent { return connector.ContentJSON }

// All flows post to the same versioned endpoint; the txnCode field inside
// the body selects the operation, mirroring the teacher's single-endpoint
// MerchantSafeUnipay API.
func (z *Ziraat) GetURL(ctx context.Context, flow string, base string) (string, error) {
	switch flow {
	case "authorize", "create", "void", "refund", "sync":
		return base, nil
	default:
		return "", apperr.New(apperr.KindInvalidRequest, "ziraat: unsupported flow").With("flow", flow)
	}
}

// AuthorizeRequest is the neutral payload this connector's GetRequestBody
// expects.
type AuthorizeRequest struct {
	AmountMinor    int64
	OrderID        string
	CardNumber     string
	CardHolderName string
	ExpireMonth    string
	ExpireYear     string
	CVV            string
	ConnectorTxnID string // transactionId, for void/refund/sync
}

func (z *Ziraat) txnCode(flow string) string {
	switch flow {
	case "void":
		return txnCodeCancel
	case "refund":
		return txnCodeRefund
	default:
		return txnCodeSale
	}
}

func (z *Ziraat) buildBaseRequest(flow string) map[string]any {
	return map[string]any{
		"version":         apiVersion,
		"txnCode":         z.txnCode(flow),
		"requestDateTime": time.Now().UTC().Format("20060102150405"),
		"terminal": map[string]any{
			"merchantSafeId": z.merchantSafeID,
			"terminalSafeId": z.terminalSafeID,
		},
	}
}

func (z *Ziraat) GetRequestBody(ctx context.Context, flow string, data any) ([]byte, error) {
	req, ok := data.(*AuthorizeRequest)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "ziraat: request payload has wrong shape")
	}
	body := z.buildBaseRequest(flow)
	switch flow {
	case "authorize", "create":
		body["order"] = map[string]any{
			"orderId":      req.OrderID,
			"amount":       req.AmountMinor,
			"currencyCode": currencyCodeTRY,
		}
		body["card"] = map[string]any{
			"cardNumber":     req.CardNumber,
			"cardHolderName": req.CardHolderName,
			"expireMonth":    req.ExpireMonth,
			"expireYear":     req.ExpireYear,
			"cvv":            req.CVV,
		}
	case "void", "refund", "sync":
		body["transactionId"] = req.ConnectorTxnID
		if flow == "refund" && req.AmountMinor > 0 {
			body["amount"] = req.AmountMinor
		}
	}
	return json.Marshal(body)
}

func (z *Ziraat) BuildRequest(ctx context.Context, flow string, data any, base string, authHeaders map[string]string) (*connector.HTTPRequest, error) {
	url, err := z.GetURL(ctx, flow, base)
	if err != nil {
		return nil, err
	}
	body, err := z.GetRequestBody(ctx, flow, data)
	if err != nil {
		return nil, err
	}
	headers, err := z.GetHeaders(ctx, flow, authHeaders)
	if err != nil {
		return nil, err
	}
	headers["auth-hash"] = z.generateAuthHash(string(body))

	return &connector.HTTPRequest{Method: "POST", URL: url, Headers: headers, Content: connector.ContentJSON, Body: body}, nil
}

// generateAuthHash reproduces provider/ziraat/ziraat.go's generateAuthHash:
// HMAC-SHA512 over the marshaled request body, keyed by the secret key.
func (z *Ziraat) generateAuthHash(data string) string {
	h := hmac.New(sha512.New, []byte(z.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func (z *Ziraat) HandleResponse(ctx context.Context, flowName string, resp *connector.HTTPResponse) (any, error) {
	var payload struct {
		RespCode      string `json:"respCode"`
		RespText      string `json:"respText"`
		TransactionID string `json:"transactionId"`
		OrderID       string `json:"orderId"`
		Amount        int64  `json:"amount"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "ziraat: decode response")
	}
	if payload.RespCode != "0000" && payload.RespCode != "00" {
		return nil, z.BuildErrorResponse(ctx, flowName, &ErrorResponse{RespCode: payload.RespCode, RespText: payload.RespText})
	}

	switch flowName {
	case "authorize", "create":
		return &flow.AuthorizeResponse{Status: statemachine.Charged, ConnectorTransactionID: payload.TransactionID}, nil
	case "void":
		return &flow.VoidResponse{Status: statemachine.Voided}, nil
	case "sync":
		return &flow.SyncResponse{Status: statemachine.Charged}, nil
	case "refund":
		amount, err := money.FromMinor(payload.Amount, "TRY")
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "ziraat: invalid refund amount")
		}
		return &flow.RefundResponse{Status: statemachine.RefundSuccess, RefundedAmount: amount}, nil
	default:
		return nil, apperr.New(apperr.KindInvalidRequest, "ziraat: unsupported flow").With("flow", flowName)
	}
}

// ErrorResponse is Ziraat's native error envelope.
type ErrorResponse struct {
	RespCode string `json:"respCode"`
	RespText string `json:"respText"`
}

func (z *Ziraat) GetErrorResponse(ctx context.Context, flow string, resp *connector.HTTPResponse) (any, error) {
	var payload ErrorResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "ziraat: decode error response")
	}
	return &payload, nil
}

func (z *Ziraat) BuildErrorResponse(ctx context.Context, flow string, nativeErr any) error {
	payload, ok := nativeErr.(*ErrorResponse)
	if !ok {
		return apperr.New(apperr.KindConnectorPermanent, "ziraat: unrecognized error shape")
	}
	kind := apperr.KindConnectorPermanent
	if payload.RespCode == "" || payload.RespCode == "9999" {
		kind = apperr.KindConnectorTransient
	}
	return apperr.New(kind, fmt.Sprintf("ziraat: %s", payload.RespText)).With("ziraat_resp_code", payload.RespCode)
}
