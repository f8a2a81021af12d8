package payten

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
)

func TestCalculateHashIsOrderIndependent(t *testing.T) {
	p := New("merchant_1", "user", "pass", "secret", false)
	params1 := map[string]string{"ACTION": "SALE", "AMOUNT": "10.00", "MERCHANT": "merchant_1"}
	params2 := map[string]string{"MERCHANT": "merchant_1", "ACTION": "SALE", "AMOUNT": "10.00"}

	assert.Equal(t, p.calculateHash(params1), p.calculateHash(params2))
}

func TestBuildRequestAuthorizeIsFormEncodedWithHash(t *testing.T) {
	p := New("merchant_1", "user", "pass", "secret", false)
	req := &AuthorizeRequest{Amount: 10, MerchantPaymentID: "pay_1"}

	httpReq, err := p.BuildRequest(context.Background(), "authorize", req, sandboxURL, nil)
	require.NoError(t, err)
	assert.Equal(t, "POST", httpReq.Method)
	assert.Equal(t, connector.ContentFormURLEncoded, httpReq.Content)

	values, err := url.ParseQuery(string(httpReq.Body))
	require.NoError(t, err)
	assert.Equal(t, actionSale, values.Get("ACTION"))
	assert.NotEmpty(t, values.Get("HASH"))
}

func TestBuildRequestVoidUsesConnectorTxnID(t *testing.T) {
	p := New("merchant_1", "user", "pass", "secret", false)
	req := &AuthorizeRequest{ConnectorTxnID: "pay_1"}

	httpReq, err := p.BuildRequest(context.Background(), "void", req, sandboxURL, nil)
	require.NoError(t, err)
	values, err := url.ParseQuery(string(httpReq.Body))
	require.NoError(t, err)
	assert.Equal(t, actionVoid, values.Get("ACTION"))
	assert.Equal(t, "pay_1", values.Get("MERCHANTPAYMENTID"))
}

func TestHandleResponseSuccessReturnCode(t *testing.T) {
	p := New("merchant_1", "user", "pass", "secret", false)
	body := []byte("PROCRETURNCODE=00&MERCHANTPAYMENTID=pay_1")

	result, err := p.HandleResponse(context.Background(), "authorize", &connector.HTTPResponse{Body: body})
	require.NoError(t, err)
	resp := result.(*flow.AuthorizeResponse)
	assert.Equal(t, "pay_1", resp.ConnectorTransactionID)
}

func TestHandleResponseNonSuccessReturnCodeIsError(t *testing.T) {
	p := New("merchant_1", "user", "pass", "secret", false)
	body := []byte("PROCRETURNCODE=05&ERRMSG=declined")

	_, err := p.HandleResponse(context.Background(), "authorize", &connector.HTTPResponse{Body: body})
	require.Error(t, err)
}
