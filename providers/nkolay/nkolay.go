// Package nkolay implements connector.Connector for Nkolay's PayNkolay
// gateway, replacing the teacher's provider/nkolay package.
package nkolay

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

const (
	sandboxURL    = "https://paynkolaytest.nkolayislem.com.tr"
	productionURL = "https://paynkolay.nkolayislem.com.tr"

	endpointPayment      = "/Vpos/v1/Payment"
	endpointCancelRefund = "/Vpos/v1/CancelRefundPayment"
	endpointPaymentList  = "/Vpos/Payment/PaymentList"
)

// Nkolay implements connector.Connector against Nkolay's PayNkolay
// gateway, grounded on provider/nkolay/nkolay.go's generateSHA1Hash: a
// SHA-1 digest whose hex output is re-packed to raw bytes before
// base64 encoding (PHP's `base64_encode(pack('H*', sha1($x)))`
// equivalent, not a plain base64(sha1(x))). Field order matters: each
// endpoint hashes a different, explicitly ordered subset of its own form
// fields plus the secret key, rather than one canonical signing scheme
// shared across flows. Requests here go form-urlencoded rather than the
// teacher's multipart/form-data, since Nkolay's API accepts both and
// this keeps the connector from needing its own multipart writer.
type Nkolay struct {
	sx           string // payment token
	sxCancel     string // cancel/refund token
	sxList       string // status-query token
	secretKey    string
	isProduction bool
}

// New builds an Nkolay connector from its merchant tokens.
func New(sx, sxCancel, sxList, secretKey string, isProduction bool) *Nkolay {
	return &Nkolay{sx: sx, sxCancel: sxCancel, sxList: sxList, secretKey: secretKey, isProduction: isProduction}
}

func (n *Nkolay) ID() string { return "nkolay" }

func (n *Nkolay) resolvedBaseURL() string {
	if n.isProduction {
		return productionURL
	}
	return sandboxURL
}

func (n *Nkolay) Capability() connector.Capability {
	return connector.Capability{
		Name:                "nkolay",
		BaseURL:             n.resolvedBaseURL(),
		AuthShape:           connector.AuthSignatureKey,
		AmountUnit:          connector.AmountMajorUnits,
		SupportedMethods:    []string{"card"},
		SupportedCaptures:   []string{"automatic"},
		SupportedCurrencies: []string{"TRY"},
		SuccessStatusCodes:  []int{200},
	}
}

func (n *Nkolay) GetHeaders(ctx context.Context, flow string, authHeaders map[string]string) (map[string]string, error) {
	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "application/json, text/html",
	}
	for k, v := range authHeaders {
		headers[k] = v
	}
	return headers, nil
}

func (n *Nkolay) GetContentType(flow string) connector.RequestContent {
	return connector.ContentFormURLEncoded
}

func (n *Nkolay) GetURL(ctx context.Context, flow string, base string) (string, error) {
	switch flow {
	case "authorize", "create":
		return base + endpointPayment, nil
	case "void", "refund":
		return base + endpointCancelRefund, nil
	case "sync":
		return base + endpointPaymentList, nil
	default:
		return "", apperr.New(apperr.KindInvalidRequest, "nkolay: unsupported flow").With("flow", flow)
	}
}

// AuthorizeRequest is the neutral payload this connector's GetRequestBody
// expects.
type AuthorizeRequest struct {
	Amount         float64
	ClientRefCode  string
	ConnectorTxnID string // referenceCode, for void/refund/sync
	TrxDate        string // YYYY.MM.DD, required for void/refund
	RefundAmount   float64
}

// sha1Base64 reproduces provider/nkolay/nkolay.go's generateSHA1Hash:
// SHA-1 hex digest re-packed to raw bytes, then base64 encoded.
func sha1Base64(input string) string {
	sum := sha1.Sum([]byte(input))
	hexHash := hex.EncodeToString(sum[:])
	binary := make([]byte, len(hexHash)/2)
	for i := 0; i < len(hexHash); i += 2 {
		val, _ := strconv.ParseUint(hexHash[i:i+2], 16, 8)
		binary[i/2] = byte(val)
	}
	return base64.StdEncoding.EncodeToString(binary)
}

func (n *Nkolay) GetRequestBody(ctx context.Context, flow string, data any) ([]byte, error) {
	req, ok := data.(*AuthorizeRequest)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidRequest, "nkolay: request payload has wrong shape")
	}

	var form url.Values
	switch flow {
	case "authorize", "create":
		form = url.Values{
			"sx":            {n.sx},
			"clientRefCode": {req.ClientRefCode},
			"amount":        {fmt.Sprintf("%.2f", req.Amount)},
		}
		input := n.sx + req.ClientRefCode + fmt.Sprintf("%.2f", req.Amount) + n.secretKey
		form.Set("hashData", sha1Base64(input))
	case "void":
		form = url.Values{
			"sx":            {n.sxCancel},
			"referenceCode": {req.ConnectorTxnID},
			"type":          {"cancel"},
			"trxDate":       {req.TrxDate},
			"resultUrl":     {"json"},
		}
		input := n.sxCancel + req.ConnectorTxnID + "cancel" + req.TrxDate + n.secretKey
		form.Set("hashData", sha1Base64(input))
	case "refund":
		amt := req.RefundAmount
		if amt == 0 {
			amt = req.Amount
		}
		amtStr := fmt.Sprintf("%.2f", amt)
		form = url.Values{
			"sx":            {n.sxCancel},
			"referenceCode": {req.ConnectorTxnID},
			"type":          {"refund"},
			"trxDate":       {req.TrxDate},
			"amount":        {amtStr},
			"resultUrl":     {"json"},
		}
		input := n.sxCancel + req.ConnectorTxnID + "refund" + amtStr + req.TrxDate + n.secretKey
		form.Set("hashData", sha1Base64(input))
	case "sync":
		today := time.Now()
		startDate := today.AddDate(0, 0, -1).Format("02.01.2006")
		endDate := today.Format("02.01.2006")
		form = url.Values{
			"sx":            {n.sxList},
			"startDate":     {startDate},
			"endDate":       {endDate},
			"clientRefCode": {req.ConnectorTxnID},
		}
		input := n.sxList + startDate + endDate + req.ConnectorTxnID + n.secretKey
		form.Set("hashData", sha1Base64(input))
	default:
		return nil, apperr.New(apperr.KindInvalidRequest, "nkolay: unsupported flow").With("flow", flow)
	}
	return []byte(form.Encode()), nil
}

func (n *Nkolay) BuildRequest(ctx context.Context, flow string, data any, base string, authHeaders map[string]string) (*connector.HTTPRequest, error) {
	urlStr, err := n.GetURL(ctx, flow, base)
	if err != nil {
		return nil, err
	}
	body, err := n.GetRequestBody(ctx, flow, data)
	if err != nil {
		return nil, err
	}
	headers, err := n.GetHeaders(ctx, flow, authHeaders)
	if err != nil {
		return nil, err
	}
	return &connector.HTTPRequest{Method: "POST", URL: urlStr, Headers: headers, Content: connector.ContentFormURLEncoded, Body: body}, nil
}

// Nkolay's gateway returns semi-structured text/JSON rather than a
// consistent JSON envelope across endpoints; a bare "SUCCESS" substring
// check is what the teacher itself falls back to, so this connector does
// the same rather than inventing a stricter parse the gateway doesn't
// actually guarantee.
func (n *Nkolay) HandleResponse(ctx context.Context, flowName string, resp *connector.HTTPResponse) (any, error) {
	body := string(resp.Body)
	if !strings.Contains(body, "SUCCESS") {
		return nil, n.BuildErrorResponse(ctx, flowName, body)
	}

	switch flowName {
	case "authorize", "create":
		return &flow.AuthorizeResponse{Status: statemachine.Charged}, nil
	case "void":
		return &flow.VoidResponse{Status: statemachine.Voided}, nil
	case "sync":
		return &flow.SyncResponse{Status: statemachine.Charged}, nil
	case "refund":
		return &flow.RefundResponse{Status: statemachine.RefundSuccess, RefundedAmount: money.FromMajor(0, "TRY")}, nil
	default:
		return nil, apperr.New(apperr.KindInvalidRequest, "nkolay: unsupported flow").With("flow", flowName)
	}
}

func (n *Nkolay) GetErrorResponse(ctx context.Context, flow string, resp *connector.HTTPResponse) (any, error) {
	return string(resp.Body), nil
}

func (n *Nkolay) BuildErrorResponse(ctx context.Context, flow string, nativeErr any) error {
	body, ok := nativeErr.(string)
	if !ok {
		return apperr.New(apperr.KindConnectorPermanent, "nkolay: unrecognized error shape")
	}
	return apperr.New(apperr.KindConnectorPermanent, "nkolay: request failed").With("nkolay_raw_response", body)
}
