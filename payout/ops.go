package payout

import (
	"context"
	"fmt"

	"github.com/mstgnz/payflow/flow"
)

// PayoutStore is the payout-specific analogue of flow.Store: the payout
// engine tracks its own status set, so it does not reuse flow.Store's
// AttemptStatus/IntentStatus persistence directly, but the same Operation
// shape (flow.Operation) drives it through flow.Executor unmodified.
type PayoutStore interface {
	Get(ctx context.Context, payoutID string) (*Payout, error)
	Save(ctx context.Context, p *Payout) error
}

// storeAdapter satisfies flow.Store by threading a *Payout through a
// RouterData's Request field. Request is never overwritten by flow.Executor
// (only Response is, once a connector call returns), so the tracker stays
// addressable across the whole pipeline including PostUpdateTracker.
type storeAdapter struct {
	inner PayoutStore
}

// NewFlowStore adapts a PayoutStore into a flow.Store.
func NewFlowStore(inner PayoutStore) flow.Store {
	return &storeAdapter{inner: inner}
}

func (a *storeAdapter) GetTracker(ctx context.Context, rd *flow.RouterData) error {
	p, err := a.inner.Get(ctx, rd.IntentID)
	if err != nil {
		return err
	}
	rd.Request = p
	return nil
}

func (a *storeAdapter) UpdateTracker(ctx context.Context, rd *flow.RouterData) error {
	p, ok := rd.Request.(*Payout)
	if !ok {
		return fmt.Errorf("payout: tracker not loaded")
	}
	return a.inner.Save(ctx, p)
}

func (a *storeAdapter) PostUpdateTracker(ctx context.Context, rd *flow.RouterData) error {
	return a.UpdateTracker(ctx, rd)
}

// createOp implements flow.Operation for payout creation: validating the
// recipient/account pair and moving the payout from RequiresCreation to
// RequiresPayoutMethodData or Ineligible.
type createOp struct{}

// NewCreateOperation returns the PayoutCreate Operation.
func NewCreateOperation() flow.Operation { return createOp{} }

func (createOp) Name() flow.Name { return flow.FlowPayoutCreate }

func (createOp) Validate(ctx context.Context, rd *flow.RouterData) error {
	p, ok := rd.Request.(*Payout)
	if !ok || p == nil {
		return fmt.Errorf("payout create: payload required")
	}
	if p.Recipient.ID == "" {
		return fmt.Errorf("payout create: recipient required")
	}
	return nil
}

func (createOp) GetTracker(ctx context.Context, rd *flow.RouterData, store flow.Store) error { return nil }

func (createOp) Domain(ctx context.Context, rd *flow.RouterData) error {
	p := rd.Request.(*Payout)
	if p.RecipientAccount.AccountNumber == "" {
		p.Status = Ineligible
		return nil
	}
	if err := ValidateTransition(RequiresCreation, RequiresPayoutMethodData); err != nil {
		return err
	}
	p.Status = RequiresPayoutMethodData
	return nil
}

func (createOp) Decide(ctx context.Context, rd *flow.RouterData) flow.Decision { return flow.Skip }

func (createOp) UpdateTracker(ctx context.Context, rd *flow.RouterData, store flow.Store) error {
	return store.UpdateTracker(ctx, rd)
}

func (createOp) PostUpdateTracker(ctx context.Context, rd *flow.RouterData, store flow.Store) error {
	return store.PostUpdateTracker(ctx, rd)
}

// fulfillOp implements flow.Operation for dispatching a payout to the
// connector once recipient/account data is in hand.
type fulfillOp struct{}

// NewFulfillOperation returns the PayoutFulfill Operation.
func NewFulfillOperation() flow.Operation { return fulfillOp{} }

func (fulfillOp) Name() flow.Name { return flow.FlowPayoutFulfill }

func (fulfillOp) Validate(ctx context.Context, rd *flow.RouterData) error { return nil }

func (fulfillOp) GetTracker(ctx context.Context, rd *flow.RouterData, store flow.Store) error {
	return store.GetTracker(ctx, rd)
}

func (fulfillOp) Domain(ctx context.Context, rd *flow.RouterData) error {
	p, ok := rd.Request.(*Payout)
	if !ok {
		return fmt.Errorf("payout fulfill: tracker not loaded")
	}
	if p.Status != RequiresFulfillment {
		return fmt.Errorf("payout %s not ready for fulfillment (status=%s)", p.ID, p.Status)
	}
	return nil
}

func (fulfillOp) Decide(ctx context.Context, rd *flow.RouterData) flow.Decision { return flow.Trigger }

func (fulfillOp) UpdateTracker(ctx context.Context, rd *flow.RouterData, store flow.Store) error {
	p := rd.Request.(*Payout)
	if err := ValidateTransition(p.Status, Initiated); err != nil {
		return err
	}
	p.Status = Initiated
	return store.UpdateTracker(ctx, rd)
}

func (fulfillOp) PostUpdateTracker(ctx context.Context, rd *flow.RouterData, store flow.Store) error {
	p := rd.Request.(*Payout)
	if rd.Err != nil {
		if err := ValidateTransition(p.Status, Failed); err == nil {
			p.Status = Failed
		}
	} else if resp, ok := rd.Response.(*FulfillResponse); ok {
		if err := ValidateTransition(p.Status, resp.Status); err != nil {
			return err
		}
		p.Status = resp.Status
		p.ConnectorRef = resp.ConnectorRef
	}
	return store.PostUpdateTracker(ctx, rd)
}

// FulfillResponse is what a connector's HandleResponse produces for
// PayoutFulfill.
type FulfillResponse struct {
	Status       Status
	ConnectorRef string
}
