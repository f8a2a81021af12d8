// Package flow implements the connector-agnostic operation pipeline that
// drives every payment/payout/mandate/3DS call through a Connector. It
// generalizes provider.PaymentService's log-around-call pattern
// (provider/service.go) from one CreatePayment-shaped call per provider into
// a uniform Validate -> GetTracker -> Domain -> UpdateTracker ->
// [connector call] -> PostUpdateTracker pipeline any flow can plug into.
package flow

import (
	"time"

	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

// Name identifies which flow a RouterData/Operation pair is running.
type Name string

const (
	FlowCreate             Name = "create"
	FlowUpdateIntent       Name = "update_intent"
	FlowAuthorize          Name = "authorize"
	FlowCompleteAuthorize  Name = "complete_authorize"
	FlowCapture            Name = "capture"
	FlowVoid               Name = "void"
	FlowSync               Name = "sync"
	FlowSetupMandate       Name = "setup_mandate"
	FlowRefund             Name = "refund"
	FlowPreAuthentication  Name = "pre_authentication"
	FlowAuthentication     Name = "authentication"
	FlowPostAuthentication Name = "post_authentication"
	FlowPayoutCreate       Name = "payout_create"
	FlowPayoutFulfill      Name = "payout_fulfill"
	FlowPayoutCancel       Name = "payout_cancel"
	FlowPayoutSync         Name = "payout_sync"
)

// RouterData is the neutral envelope threaded through an Operation. It
// generalizes the spec's RouterData<Flow,Req,Resp> without reaching for
// generics (a single non-generic struct dispatched by flow name keeps the
// Connector contract closed and lets one executor drive every flow, rather
// than a Connector interface parameterized per flow).
type RouterData struct {
	Flow Name

	IntentID    string
	AttemptID   string
	ConnectorID string
	MerchantID  string

	AttemptStatus statemachine.AttemptStatus
	IntentStatus  statemachine.IntentStatus
	CaptureMethod statemachine.CaptureMethod

	Amount        money.Amount
	CapturedSoFar money.Amount
	RefundedSoFar money.Amount

	AuthHeaders map[string]string

	// Request is the flow-specific request payload (e.g. *AuthorizeRequest),
	// Response is what the connector's HandleResponse produced.
	Request  any
	Response any

	// ConnectorRequestID/ConnectorTransactionID hold the connector's own
	// reference once a call has been made, for reconciliation and sync.
	ConnectorRequestID     string
	ConnectorTransactionID string

	RetriesRemaining int
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// StoreVersion is optimistic-concurrency bookkeeping owned by whichever
	// Store implementation loaded this RouterData (e.g. store.Postgres);
	// flow.Executor and Operations never read or write it.
	StoreVersion int

	// Err accumulates a classified failure so PostUpdateTracker can persist
	// the right terminal/retry status even when the connector call itself
	// returned an error rather than a parsed Response.
	Err error
}

// RetriesRemain reports whether another automatic retry is permitted.
func (rd *RouterData) RetriesRemain() bool {
	return rd.RetriesRemaining > 0
}
