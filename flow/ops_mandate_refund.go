package flow

import (
	"context"
	"fmt"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/mandate"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
)

// SetupMandateRequest asks a connector to establish a reusable mandate
// against a payment method, usually a zero- or minimal-amount verification
// charge, before any future off/on-session reuse.
type SetupMandateRequest struct {
	PaymentMethodToken string
	CustomerID         string
	RequestedUsage     mandate.FutureUsage
}

type setupMandateOpImpl struct{}

// NewSetupMandateOperation returns the SetupMandate Operation. The
// capability-based off_session -> on_session downgrade runs in Domain,
// applying mandate.ApplyCapabilityDowngrade before the request ever reaches
// GetRequestBody.
func NewSetupMandateOperation() Operation { return setupMandateOpImpl{} }

func (setupMandateOpImpl) Name() Name { return FlowSetupMandate }

func (setupMandateOpImpl) Validate(ctx context.Context, rd *RouterData) error {
	req, ok := rd.Request.(*SetupMandateRequest)
	if !ok || req == nil || req.PaymentMethodToken == "" {
		return fmt.Errorf("setup_mandate: payment_method_token required")
	}
	return nil
}

func (setupMandateOpImpl) GetTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.GetTracker(ctx, rd)
}

func (setupMandateOpImpl) Domain(ctx context.Context, rd *RouterData) error {
	req := rd.Request.(*SetupMandateRequest)
	cap, _ := connector.Default.Capability(rd.ConnectorID)
	req.RequestedUsage = mandate.ApplyCapabilityDowngrade(cap, req.RequestedUsage)

	rd.AttemptStatus = statemachine.Started
	return nil
}

func (setupMandateOpImpl) Decide(ctx context.Context, rd *RouterData) Decision { return Trigger }

func (setupMandateOpImpl) UpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	if err := statemachine.ValidateTransition(rd.AttemptStatus, statemachine.Authorizing); err != nil {
		return err
	}
	rd.AttemptStatus = statemachine.Authorizing
	return store.UpdateTracker(ctx, rd)
}

func (setupMandateOpImpl) PostUpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	if rd.Err != nil {
		applyErrTransition(rd)
	} else if resp, ok := rd.Response.(*SetupMandateResponse); ok {
		if err := statemachine.ValidateTransition(rd.AttemptStatus, resp.Status); err != nil {
			return err
		}
		rd.AttemptStatus = resp.Status
		rd.ConnectorTransactionID = resp.ConnectorMandateID
	}
	rd.IntentStatus = statemachine.DeriveIntentStatus(rd.AttemptStatus, rd.CaptureMethod, rd.RetriesRemain())
	return store.PostUpdateTracker(ctx, rd)
}

// SetupMandateResponse is what a connector's HandleResponse produces for
// SetupMandate.
type SetupMandateResponse struct {
	Status             statemachine.AttemptStatus
	ConnectorMandateID string
}

// RefundRequest requests a refund, full or partial, against a charged
// attempt.
type RefundRequest struct {
	Amount money.Amount
	Reason string
}

type refundOp struct{}

// NewRefundOperation returns the Refund Operation.
func NewRefundOperation() Operation { return refundOp{} }

func (refundOp) Name() Name { return FlowRefund }

func (refundOp) Validate(ctx context.Context, rd *RouterData) error {
	req, ok := rd.Request.(*RefundRequest)
	if !ok || req == nil || !req.Amount.IsPositive() {
		return fmt.Errorf("refund: amount must be positive")
	}
	return nil
}

func (refundOp) GetTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.GetTracker(ctx, rd)
}

func (refundOp) Domain(ctx context.Context, rd *RouterData) error {
	if rd.AttemptStatus != statemachine.Charged && rd.AttemptStatus != statemachine.PartialCharged {
		return fmt.Errorf("refund: attempt %s not charged (status=%s)", rd.AttemptID, rd.AttemptStatus)
	}
	req := rd.Request.(*RefundRequest)
	refundable, err := rd.CapturedSoFar.Sub(rd.RefundedSoFar)
	if err != nil {
		return err
	}
	if !req.Amount.LessThanOrEqual(refundable) {
		return fmt.Errorf("refund: amount %s exceeds refundable %s", req.Amount, refundable)
	}
	return nil
}

func (refundOp) Decide(ctx context.Context, rd *RouterData) Decision { return Trigger }

func (refundOp) UpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.UpdateTracker(ctx, rd)
}

func (refundOp) PostUpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	if rd.Err == nil {
		if resp, ok := rd.Response.(*RefundResponse); ok {
			sum, err := rd.RefundedSoFar.Add(resp.RefundedAmount)
			if err != nil {
				return apperr.Wrap(apperr.KindIntegrity, err, "refund amount currency mismatch")
			}
			rd.RefundedSoFar = sum
			if rd.RefundedSoFar.LessThanOrEqual(rd.CapturedSoFar) && !rd.RefundedSoFar.IsZero() {
				eq, err := rd.RefundedSoFar.Sub(rd.CapturedSoFar)
				if err == nil && eq.IsZero() {
					rd.IntentStatus = statemachine.Cancelled
				}
			}
		}
	}
	return store.PostUpdateTracker(ctx, rd)
}

// RefundResponse is what a connector's HandleResponse produces for Refund.
type RefundResponse struct {
	Status         statemachine.RefundStatus
	RefundedAmount money.Amount
}
