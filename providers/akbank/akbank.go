// Package akbank implements connector.Connector for Akbank's virtual POS
// gateway, replacing the teacher's provider/akbank package. This is the
// same transaction-code/auth-hash shape as providers/ziraat (both banks
// front a MerchantSafeUnipay-family gateway) but against Akbank's own
// endpoint and with the endpoint itself doubling as the full URL rather
// than a path joined to a shared base.
package akbank

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
	sandboxURL    = "https://apipre.akbank.com/api/v1/payment/virtualpos/transaction/process"
	productionURL = "https://api.akbank.com/api/v1/payment/virtualpos/transaction/process"

	txnCodeSale   = "1000"
	txnCodeCancel = "2000"
	txnCodeRefund = "2100"

	currencyCodeTRY = 949
	apiVersion      = "1.00"
)

// Akbank implements connector.Connector against Akbank's virtual POS
// gateway, grounded on provider/akbank/akbank.go's buildBaseRequest/
// generateAuthHash pair: a single endpoint for every flow, selected by a
// txnCode field in the body, authenticated via an "auth-hash" header
// computed as HMAC-SHA512 over the marshaled JSON body.
type Akbank struct {
	merchantSafeID string
	terminalSafeID string
	secretKey      string
	isProduction   bool
}

// New builds an Akbank connector from its terminal credentials.
func New(merchantSafeID, terminalSafeID, secretKey string, isProduction bool) *Akbank {
	return &Akbank{merchantSafeID: merchantSafeID, terminalSafeID: terminalSafeID, secretKey: secretKey, isProduction: isProduction}
}

func (a *Akbank) ID() string { return "akbank" }

func (a *Akbank) resolvedBaseURL() string {
	if a.isProduction {
		return productionURL
	}
	return sandboxURL
}

func (a *Akbank) Capability() connector.Capability {
	return connector.Capability{
		Name:                "akbank",
		BaseURL:             a.resolvedBaseURL(),
		AuthShape:           connector.AuthSignatureKey,
		AmountUnit:          connector.AmountMinorUnits,
		SupportedMethods:    []string{"card"},
		SupportedCaptures:   []string{"automatic"},
		SupportedCurrencies: []string{"TRY"},
		Supports3DS:         true,
		SuccessStatusCodes:  []int{200},
	}
}

func (a *Akbank) GetHeaders(ctx context.Context, flow string, authHeaders map[string]string) (map[string]string, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range authHeaders {
		headers[k] = v
	}
	return headers, nil
}

func (a *Akbank) GetContentType(flow string) connector.RequestContent { return connector.ContentJSON }

func (a *Akbank) GetURL(ctx context.Context, flow string, base string) (string, error) {
	switch flow {
	case "authorize", "create", "void", "refund", "sync":
		return base, nil
	default:
		return "", apperr.New(apperr.KindInvalidRequest, "akbank: unsupported flow").With("flow", flow)
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

func (a *Akbank) txnCode(flow string) string {
	switch flow {
	case "void":
		return txnCodeCancel
	case "refund":
		return txnCodeRefund
	default:
		return txnCodeSale
	}
}

func (a *Akbank) buildBaseRequest(flow string) map[string]any {
	return map[string]any{
		"version":         apiVersion,
		"txnCode":         a.txnCode(flow),
		"requestDateTime": time.Now().UTC().Format("20060102150405"),
		"terminal": map[string]any{
			"merchantSafeId": a.merchantSafeID,
			"terminalSafeId": a.terminalSafeID,
		},
	}
}

func (a *Akbank) GetRequestBody(ctx context.Context, flow string, data any) ([]byte, error) {
	req, ok := data.(*AuthorizeRequest)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "akbank: request payload has wrong shape")
	}
	body := a.buildBaseRequest(flow)
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

func (a *Akbank) BuildRequest(ctx context.Context, flow string, data any, base string, authHeaders map[string]string) (*connector.HTTPRequest, error) {
	urlStr, err := a.GetURL(ctx, flow, base)
	if err != nil {
		return nil, err
	}
	body, err := a.GetRequestBody(ctx, flow, data)
	if err != nil {
		return nil, err
	}
	headers, err := a.GetHeaders(ctx, flow, authHeaders)
	if err != nil {
		return nil, err
	}
	headers["auth-hash"] = a.generateAuthHash(string(body))

	return &connector.HTTPRequest{Method: "POST", URL: urlStr, Headers: headers, Content: connector.ContentJSON, Body: body}, nil
}

// generateAuthHash reproduces provider/akbank/akbank.go's generateAuthHash:
// HMAC-SHA512 over the marshaled request body, keyed by the secret key.
func (a *Akbank) generateAuthHash(data string) string {
	h := hmac.New(sha512.New, []byte(a.secretKey))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func (a *Akbank) HandleResponse(ctx context.Context, flowName string, resp *connector.HTTPResponse) (any, error) {
	var payload struct {
		RespCode      string `json:"respCode"`
		RespText      string `json:"respText"`
		TransactionID string `json:"transactionId"`
		OrderID       string `json:"orderId"`
		Amount        int64  `json:"amount"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "akbank: decode response")
	}
	if payload.RespCode != "0000" && payload.RespCode != "00" {
		return nil, a.BuildErrorResponse(ctx, flowName, &ErrorResponse{RespCode: payload.RespCode, RespText: payload.RespText})
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
			return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "akbank: invalid refund amount")
		}
		return &flow.RefundResponse{Status: statemachine.RefundSuccess, RefundedAmount: amount}, nil
	default:
		return nil, apperr.New(apperr.KindInvalidRequest, "akbank: unsupported flow").With("flow", flowName)
	}
}

// ErrorResponse is Akbank's native error envelope.
type ErrorResponse struct {
	RespCode string `json:"respCode"`
	RespText string `json:"respText"`
}

func (a *Akbank) GetErrorResponse(ctx context.Context, flow string, resp *connector.HTTPResponse) (any, error) {
	var payload ErrorResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "akbank: decode error response")
	}
	return &payload, nil
}

func (a *Akbank) BuildErrorResponse(ctx context.Context, flow string, nativeErr any) error {
	payload, ok := nativeErr.(*ErrorResponse)
	if !ok {
		return apperr.New(apperr.KindConnectorPermanent, "akbank: unrecognized error shape")
	}
	kind := apperr.KindConnectorPermanent
	if payload.RespCode == "" || payload.RespCode == "9999" {
		kind = apperr.KindConnectorTransient
	}
	return apperr.New(kind, fmt.Sprintf("akbank: %s", payload.RespText)).With("akbank_resp_code", payload.RespCode)
}
