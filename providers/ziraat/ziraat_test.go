package ziraat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/statemachine"
)

func TestBuildRequestAuthorizeSetsAuthHashHeader(t *testing.T) {
	z := New("msid", "tsid", "secret", false)
	req := &AuthorizeRequest{AmountMinor: 1000, OrderID: "order_1", CardNumber: "4111111111111111"}

	httpReq, err := z.BuildRequest(context.Background(), "authorize", req, sandboxURL, nil)
	require.NoError(t, err)
	assert.Equal(t, "POST", httpReq.Method)
	assert.Equal(t, sandboxURL, httpReq.URL)
	assert.NotEmpty(t, httpReq.Headers["auth-hash"])
}

func TestGetRequestBodySelectsTxnCodePerFlow(t *testing.T) {
	z := New("msid", "tsid", "secret", false)

	saleBody, err := z.GetRequestBody(context.Background(), "authorize", &AuthorizeRequest{OrderID: "o1"})
	require.NoError(t, err)
	assert.Contains(t, string(saleBody), `"txnCode":"1000"`)

	refundBody, err := z.GetRequestBody(context.Background(), "refund", &AuthorizeRequest{ConnectorTxnID: "txn_1", AmountMinor: 500})
	require.NoError(t, err)
	assert.Contains(t, string(refundBody), `"txnCode":"2100"`)
}

func TestHandleResponseSuccessCode(t *testing.T) {
	z := New("msid", "tsid", "secret", false)
	body := []byte(`{"respCode":"0000","respText":"approved","transactionId":"txn_1","orderId":"order_1"}`)

	result, err := z.HandleResponse(context.Background(), "authorize", &connector.HTTPResponse{Body: body})
	require.NoError(t, err)
	resp := result.(*flow.AuthorizeResponse)
	assert.Equal(t, "txn_1", resp.ConnectorTransactionID)
	assert.Equal(t, statemachine.Charged, resp.Status)
}

func TestHandleResponseNonZeroRespCodeIsError(t *testing.T) {
	z := New("msid", "tsid", "secret", false)
	body := []byte(`{"respCode":"0100","respText":"declined"}`)

	_, err := z.HandleResponse(context.Background(), "authorize", &connector.HTTPResponse{Body: body})
	require.Error(t, err)
}
