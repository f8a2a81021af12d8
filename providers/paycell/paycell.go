// Package paycell implements connector.Connector for Turkcell Paycell,
// replacing the teacher's provider/paycell package. Card tokenization,
// OTP and the 3D Secure session/result dance are out of scope here (the
// threeds and mandate packages own those generically); this connector
// covers the direct provision/reverse/refund/inquire REST calls.
package paycell

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

const (
	sandboxURL    = "https://tpay-test.turkcell.com.tr"
	productionURL = "https://tpay.turkcell.com.tr"

	endpointProvision = "/tpay/provision/services/restful/getCardToken/provision/"
	endpointInquire   = "/tpay/provision/services/restful/getCardToken/inquire/"
	endpointReverse   = "/tpay/provision/services/restful/getCardToken/reverse/"
	endpointRefund    = "/tpay/provision/services/restful/getCardToken/refund/"

	statusSuccess = "SUCCESS"
)

// Paycell implements connector.Connector against Turkcell Paycell's REST
// API, grounded on provider/paycell/paycell.go's generatePaycellHash: a
// two-stage SHA-256-then-base64 hash, first over
// uppercase(password+username), then over
// uppercase(username+transactionId+transactionDateTime+secureCode)+that
// first hash. Both the transaction ID and datetime are generated fresh
// per request and become part of the signed material, so BuildRequest
// computes the hash rather than GetHeaders.
type Paycell struct {
	username     string
	password     string
	secureCode   string
	isProduction bool
}

// New builds a Paycell connector from its application credentials.
func New(username, password, secureCode string, isProduction bool) *Paycell {
	return &Paycell{username: username, password: password, secureCode: secureCode, isProduction: isProduction}
}

func (p *Paycell) ID() string { return "paycell" }

func (p *Paycell) resolvedBaseURL() string {
	if p.isProduction {
		return productionURL
	}
	return sandboxURL
}

func (p *Paycell) Capability() connector.Capability {
	return connector.Capability{
		Name:                "paycell",
		BaseURL:             p.resolvedBaseURL(),
		AuthShape:           connector.AuthSignatureKey,
		AmountUnit:          connector.AmountMinorUnits,
		SupportedMethods:    []string{"card"},
		SupportedCaptures:   []string{"automatic"},
		SupportedCurrencies: []string{"TRY"},
		Supports3DS:         true,
		SuccessStatusCodes:  []int{200},
	}
}

func (p *Paycell) GetHeaders(ctx context.Context, flow string, authHeaders map[string]string) (map[string]string, error) {
	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range authHeaders {
		headers[k] = v
	}
	return headers, nil
}

func (p *Paycell) GetContentType(flow string) connector.RequestContent { return connector.ContentJSON }

func (p *Paycell) GetURL(ctx context.Context, flow string, base string) (string, error) {
	switch flow {
	case "authorize", "create":
		return base + endpointProvision, nil
	case "void":
		return base + endpointReverse, nil
	case "refund":
		return base + endpointRefund, nil
	case "sync":
		return base + endpointInquire, nil
	default:
		return "", apperr.New(apperr.KindInvalidRequest, "paycell: unsupported flow").With("flow", flow)
	}
}

// AuthorizeRequest is the neutral payload this connector's GetRequestBody
// expects.
type AuthorizeRequest struct {
	AmountMinor    int64
	CardToken      string
	ConnectorTxnID string // original transactionId, for void/refund/sync
	RefundAmount   int64
}

func generateTransactionID() string {
	now := time.Now()
	return fmt.Sprintf("%010d%010d", now.Unix()%10000000000, now.UnixNano()%10000000000)
}

func generateTransactionDateTime() string {
	now := time.Now()
	return now.Format("20060102150405") + fmt.Sprintf("%03d", now.Nanosecond()/1000000)
}

// hash reproduces provider/paycell/paycell.go's paycellHash: SHA-256
// followed by base64 (no uppercasing at this layer; callers uppercase
// their inputs).
func hash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// generateHashData reproduces generatePaycellHash's two-stage scheme.
func (p *Paycell) generateHashData(transactionID, transactionDateTime string) string {
	securityData := strings.ToUpper(hash(strings.ToUpper(p.password + p.username)))
	hashDataInput := strings.ToUpper(p.username+transactionID+transactionDateTime+p.secureCode) + securityData
	return hash(hashDataInput)
}

func (p *Paycell) GetRequestBody(ctx context.Context, flow string, data any) ([]byte, error) {
	req, ok := data.(*AuthorizeRequest)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "paycell: request payload has wrong shape")
	}
	transactionID := generateTransactionID()
	transactionDateTime := generateTransactionDateTime()
	requestHeader := map[string]any{
		"applicationName": p.username,
		"applicationPwd":  p.password,
		"clientIPAddress": "127.0.0.1",
		"transactionId":   transactionID,
		"transactionDateTime": transactionDateTime,
		"secureCode":      p.secureCode,
		"hashData":        p.generateHashData(transactionID, transactionDateTime),
	}
	body := map[string]any{"requestHeader": requestHeader}

	switch flow {
	case "authorize", "create":
		body["cardToken"] = req.CardToken
		body["amount"] = req.AmountMinor
		body["pointAmount"] = "0"
		body["currency"] = "TRY"
		body["installmentCount"] = "1"
		body["paymentType"] = "SALE"
	case "void":
		body["originalTransactionId"] = req.ConnectorTxnID
	case "refund":
		amt := req.RefundAmount
		if amt == 0 {
			amt = req.AmountMinor
		}
		body["originalTransactionId"] = req.ConnectorTxnID
		body["amount"] = amt
	case "sync":
		body["originalTransactionId"] = req.ConnectorTxnID
	}
	return json.Marshal(body)
}

func (p *Paycell) BuildRequest(ctx context.Context, flow string, data any, base string, authHeaders map[string]string) (*connector.HTTPRequest, error) {
	url, err := p.GetURL(ctx, flow, base)
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
	return &connector.HTTPRequest{Method: "POST", URL: url, Headers: headers, Content: connector.ContentJSON, Body: body}, nil
}

type paycellEnvelope struct {
	ResponseHeader struct {
		TransactionID       string `json:"transactionId"`
		ResponseCode        string `json:"responseCode"`
		ResponseDescription string `json:"responseDescription"`
	} `json:"responseHeader"`
	Amount int64 `json:"amount,omitempty"`
}

func (p *Paycell) HandleResponse(ctx context.Context, flowName string, resp *connector.HTTPResponse) (any, error) {
	var payload paycellEnvelope
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "paycell: decode response")
	}
	if payload.ResponseHeader.ResponseCode != statusSuccess && payload.ResponseHeader.ResponseCode != "0" {
		return nil, p.BuildErrorResponse(ctx, flowName, &payload)
	}

	switch flowName {
	case "authorize", "create":
		return &flow.AuthorizeResponse{Status: statemachine.Charged, ConnectorTransactionID: payload.ResponseHeader.TransactionID}, nil
	case "void":
		return &flow.VoidResponse{Status: statemachine.Voided}, nil
	case "sync":
		return &flow.SyncResponse{Status: statemachine.Charged}, nil
	case "refund":
		amount, err := money.FromMinor(payload.Amount, "TRY")
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "paycell: invalid refund amount")
		}
		return &flow.RefundResponse{Status: statemachine.RefundSuccess, RefundedAmount: amount}, nil
	default:
		return nil, apperr.New(apperr.KindInvalidRequest, "paycell: unsupported flow").With("flow", flowName)
	}
}

func (p *Paycell) GetErrorResponse(ctx context.Context, flow string, resp *connector.HTTPResponse) (any, error) {
	var payload paycellEnvelope
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConnectorPermanent, err, "paycell: decode error response")
	}
	return &payload, nil
}

func (p *Paycell) BuildErrorResponse(ctx context.Context, flow string, nativeErr any) error {
	payload, ok := nativeErr.(*paycellEnvelope)
	if !ok {
		return apperr.New(apperr.KindConnectorPermanent, "paycell: unrecognized error shape")
	}
	kind := apperr.KindConnectorPermanent
	if payload.ResponseHeader.ResponseCode == "" {
		kind = apperr.KindConnectorTransient
	}
	return apperr.New(kind, fmt.Sprintf("paycell: %s", payload.ResponseHeader.ResponseDescription)).
		With("paycell_code", payload.ResponseHeader.ResponseCode)
}
