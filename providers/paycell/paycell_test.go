package paycell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
)

func TestGenerateHashDataIsNonEmptyAndDeterministicPerTransaction(t *testing.T) {
	p := New("user", "pass", "secure", false)
	h1 := p.generateHashData("txn1", "20260101120000000")
	h2 := p.generateHashData("txn1", "20260101120000000")
	h3 := p.generateHashData("txn2", "20260101120000000")

	assert.NotEmpty(t, h1)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestBuildRequestAuthorizeTargetsProvisionEndpoint(t *testing.T) {
	p := New("user", "pass", "secure", false)
	req := &AuthorizeRequest{AmountMinor: 1000, CardToken: "tok_1"}

	httpReq, err := p.BuildRequest(context.Background(), "authorize", req, sandboxURL, nil)
	require.NoError(t, err)
	assert.Equal(t, "POST", httpReq.Method)
	assert.Equal(t, sandboxURL+endpointProvision, httpReq.URL)
	assert.Contains(t, string(httpReq.Body), `"hashData"`)
}

func TestBuildRequestVoidTargetsReverseEndpoint(t *testing.T) {
	p := New("user", "pass", "secure", false)
	req := &AuthorizeRequest{ConnectorTxnID: "txn_1"}

	httpReq, err := p.BuildRequest(context.Background(), "void", req, sandboxURL, nil)
	require.NoError(t, err)
	assert.Equal(t, sandboxURL+endpointReverse, httpReq.URL)
}

func TestHandleResponseSuccessCode(t *testing.T) {
	p := New("user", "pass", "secure", false)
	body := []byte(`{"responseHeader":{"transactionId":"txn_1","responseCode":"SUCCESS"}}`)

	result, err := p.HandleResponse(context.Background(), "authorize", &connector.HTTPResponse{Body: body})
	require.NoError(t, err)
	resp := result.(*flow.AuthorizeResponse)
	assert.Equal(t, "txn_1", resp.ConnectorTransactionID)
}

func TestHandleResponseFailureCodeIsError(t *testing.T) {
	p := New("user", "pass", "secure", false)
	body := []byte(`{"responseHeader":{"responseCode":"9999","responseDescription":"declined"}}`)

	_, err := p.HandleResponse(context.Background(), "authorize", &connector.HTTPResponse{Body: body})
	require.Error(t, err)
}
