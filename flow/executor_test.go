package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/httpexec"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

// fakeStore is an in-memory Store used by flow tests; it only records that
// each stage ran rather than actually persisting anything.
type fakeStore struct {
	getTrackerCalls        int
	updateTrackerCalls     int
	postUpdateTrackerCalls int
}

func (f *fakeStore) GetTracker(ctx context.Context, rd *RouterData) error {
	f.getTrackerCalls++
	return nil
}

func (f *fakeStore) UpdateTracker(ctx context.Context, rd *RouterData) error {
	f.updateTrackerCalls++
	return nil
}

func (f *fakeStore) PostUpdateTracker(ctx context.Context, rd *RouterData) error {
	f.postUpdateTrackerCalls++
	return nil
}

// fakeConnector builds no real HTTP request (tests stub httpexec.Executor
// indirectly by pointing BuildRequest at a URL no server is listening on is
// avoided here; instead these tests exercise the pipeline stages up to but
// not including a live Do() call) so these are pipeline-shape tests, not
// wire tests — connector-specific wire behavior is covered per-connector.
type fakeConnector struct {
	id           string
	capability   connector.Capability
	handleResp   any
	handleErr    error
	buildReqErr  error
}

func (f *fakeConnector) ID() string { return f.id }

func (f *fakeConnector) GetHeaders(ctx context.Context, flow string, authHeaders map[string]string) (map[string]string, error) {
	return authHeaders, nil
}

func (f *fakeConnector) GetContentType(flow string) connector.RequestContent { return connector.ContentJSON }

func (f *fakeConnector) GetURL(ctx context.Context, flow string, baseURL string) (string, error) {
	return baseURL + "/" + flow, nil
}

func (f *fakeConnector) GetRequestBody(ctx context.Context, flow string, data any) ([]byte, error) {
	return []byte("{}"), nil
}

func (f *fakeConnector) BuildRequest(ctx context.Context, flow string, data any, baseURL string, authHeaders map[string]string) (*connector.HTTPRequest, error) {
	if f.buildReqErr != nil {
		return nil, f.buildReqErr
	}
	return &connector.HTTPRequest{Method: "POST", URL: "http://127.0.0.1:0/" + flow, Headers: authHeaders, Content: connector.ContentJSON, Body: []byte("{}")}, nil
}

func (f *fakeConnector) HandleResponse(ctx context.Context, flow string, resp *connector.HTTPResponse) (any, error) {
	return f.handleResp, f.handleErr
}

func (f *fakeConnector) GetErrorResponse(ctx context.Context, flow string, resp *connector.HTTPResponse) (any, error) {
	return nil, nil
}

func (f *fakeConnector) BuildErrorResponse(ctx context.Context, flow string, nativeErr any) error {
	return nil
}

func TestCreateOperationSkipsConnectorCall(t *testing.T) {
	store := &fakeStore{}
	rd := &RouterData{Amount: money.FromMajor(10, "USD")}
	ex := NewExecutor(httpexec.New(0))

	err := ex.Run(context.Background(), NewCreateOperation(), nil, store, rd)
	require.NoError(t, err)
	assert.Equal(t, statemachine.RequiresPaymentMethod, rd.IntentStatus)
	assert.Equal(t, 1, store.updateTrackerCalls)
	assert.Equal(t, 1, store.postUpdateTrackerCalls)
}

func TestCreateOperationRejectsNonPositiveAmount(t *testing.T) {
	store := &fakeStore{}
	rd := &RouterData{Amount: money.Zero("USD")}
	ex := NewExecutor(httpexec.New(0))

	err := ex.Run(context.Background(), NewCreateOperation(), nil, store, rd)
	assert.Error(t, err)
	assert.Equal(t, 0, store.updateTrackerCalls, "validation failure must not reach UpdateTracker")
}

func TestSyncOperationSkipsWhenNeverDispatched(t *testing.T) {
	store := &fakeStore{}
	rd := &RouterData{IntentStatus: statemachine.Processing}
	ex := NewExecutor(httpexec.New(0))

	err := ex.Run(context.Background(), NewSyncOperation(), nil, store, rd)
	require.NoError(t, err)
	assert.Equal(t, 1, store.postUpdateTrackerCalls)
}

func TestAuthorizeOperationAvoidsTerminalIntent(t *testing.T) {
	store := &fakeStore{}
	rd := &RouterData{
		Request:      &AuthorizeRequest{PaymentMethodToken: "tok_1"},
		IntentStatus: statemachine.RequiresPaymentMethod,
	}
	// Force terminal after Domain runs by pre-setting AttemptStatus such
	// that Decide sees a terminal intent: simulate by setting IntentStatus
	// terminal directly before Decide is consulted.
	rd.IntentStatus = statemachine.Succeeded
	ex := NewExecutor(httpexec.New(0))

	err := ex.Run(context.Background(), NewAuthorizeOperation(), nil, store, rd)
	assert.Error(t, err, "authorize against a terminal intent must fail fast without a connector call")
}

func TestCaptureOperationRejectsOverCapture(t *testing.T) {
	store := &fakeStore{}
	rd := &RouterData{
		Request:       &CaptureRequest{AmountToCapture: money.FromMajor(100, "USD")},
		Amount:        money.FromMajor(50, "USD"),
		AttemptStatus: statemachine.Authorized,
	}
	ex := NewExecutor(httpexec.New(0))

	err := ex.Run(context.Background(), NewCaptureOperation(), nil, store, rd)
	assert.Error(t, err)
}

func TestRefundOperationRejectsOverRefund(t *testing.T) {
	store := &fakeStore{}
	rd := &RouterData{
		Request:       &RefundRequest{Amount: money.FromMajor(100, "USD")},
		CapturedSoFar: money.FromMajor(50, "USD"),
		AttemptStatus: statemachine.Charged,
	}
	ex := NewExecutor(httpexec.New(0))

	err := ex.Run(context.Background(), NewRefundOperation(), nil, store, rd)
	assert.Error(t, err)
}
