package flow

import (
	"context"
	"fmt"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/money"
	"github.com/mstgnz/payflow/statemachine"
	"github.com/mstgnz/payflow/threeds"
)

// CompleteAuthorizeRequest carries the redirect-completion payload for
// connectors whose authorize flow suspends on a 3DS/external redirect.
// ThreeDSAuth, when set, is the PostAuthentication proof the ACS/3DS server
// returned after the customer cleared (or failed) the challenge; Domain
// stitches it in before the connector's completion call.
type CompleteAuthorizeRequest struct {
	ConnectorTransactionID string
	RedirectParams         map[string]string
	ThreeDSAuth            *threeds.AuthenticationContext
}

type completeAuthorizeOp struct{}

// NewCompleteAuthorizeOperation returns the Operation that finishes an
// authorize call suspended on an external redirect/3DS step.
func NewCompleteAuthorizeOperation() Operation { return completeAuthorizeOp{} }

func (completeAuthorizeOp) Name() Name { return FlowCompleteAuthorize }

func (completeAuthorizeOp) Validate(ctx context.Context, rd *RouterData) error {
	req, ok := rd.Request.(*CompleteAuthorizeRequest)
	if !ok || req == nil || req.ConnectorTransactionID == "" {
		return fmt.Errorf("complete_authorize: connector transaction id required")
	}
	return nil
}

func (completeAuthorizeOp) GetTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.GetTracker(ctx, rd)
}

func (completeAuthorizeOp) Domain(ctx context.Context, rd *RouterData) error {
	if rd.AttemptStatus != statemachine.AuthenticationPending && rd.AttemptStatus != statemachine.ConfirmationAwaited {
		return fmt.Errorf("complete_authorize: attempt %s not awaiting completion (status=%s)", rd.AttemptID, rd.AttemptStatus)
	}

	req := rd.Request.(*CompleteAuthorizeRequest)
	if req.ThreeDSAuth != nil {
		outcome, err := threeds.MapTransStatus(req.ThreeDSAuth.TransStatus)
		if err != nil {
			return fmt.Errorf("complete_authorize: %w", err)
		}
		if outcome == threeds.OutcomeFailed {
			return fmt.Errorf("complete_authorize: 3DS authentication failed for attempt %s", rd.AttemptID)
		}
		req.ThreeDSAuth.Stage = threeds.StagePostAuthentication
	}
	return nil
}

func (completeAuthorizeOp) Decide(ctx context.Context, rd *RouterData) Decision { return Trigger }

func (completeAuthorizeOp) UpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.UpdateTracker(ctx, rd)
}

func (completeAuthorizeOp) PostUpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	if rd.Err != nil {
		applyErrTransition(rd)
	} else if resp, ok := rd.Response.(*AuthorizeResponse); ok {
		if err := requireAllowedRedirectURL(rd.ConnectorID, resp.RedirectURL); err != nil {
			return err
		}
		if err := statemachine.ValidateTransition(rd.AttemptStatus, resp.Status); err != nil {
			return err
		}
		rd.AttemptStatus = resp.Status
		rd.ConnectorTransactionID = resp.ConnectorTransactionID
	}
	rd.IntentStatus = statemachine.DeriveIntentStatus(rd.AttemptStatus, rd.CaptureMethod, rd.RetriesRemain())
	return store.PostUpdateTracker(ctx, rd)
}

// CaptureRequest requests capture of a previously authorized amount, which
// may be less than the full authorized amount (partial capture).
type CaptureRequest struct {
	AmountToCapture money.Amount
}

type captureOp struct{}

// NewCaptureOperation returns the Capture Operation.
func NewCaptureOperation() Operation { return captureOp{} }

func (captureOp) Name() Name { return FlowCapture }

func (captureOp) Validate(ctx context.Context, rd *RouterData) error {
	req, ok := rd.Request.(*CaptureRequest)
	if !ok || req == nil || !req.AmountToCapture.IsPositive() {
		return fmt.Errorf("capture: amount_to_capture must be positive")
	}
	return nil
}

func (captureOp) GetTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.GetTracker(ctx, rd)
}

func (captureOp) Domain(ctx context.Context, rd *RouterData) error {
	if rd.AttemptStatus != statemachine.Authorized && rd.AttemptStatus != statemachine.PartialCharged && rd.AttemptStatus != statemachine.PartialChargedAndChargeable {
		return fmt.Errorf("capture: attempt %s not in a capturable state (status=%s)", rd.AttemptID, rd.AttemptStatus)
	}
	req := rd.Request.(*CaptureRequest)
	remaining, err := rd.Amount.Sub(rd.CapturedSoFar)
	if err != nil {
		return err
	}
	if !req.AmountToCapture.LessThanOrEqual(remaining) {
		return fmt.Errorf("capture: amount_to_capture %s exceeds remaining capturable %s", req.AmountToCapture, remaining)
	}
	return nil
}

func (captureOp) Decide(ctx context.Context, rd *RouterData) Decision { return Trigger }

func (captureOp) UpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	if err := statemachine.ValidateTransition(rd.AttemptStatus, statemachine.CaptureInitiated); err != nil {
		return err
	}
	rd.AttemptStatus = statemachine.CaptureInitiated
	return store.UpdateTracker(ctx, rd)
}

func (captureOp) PostUpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	if rd.Err != nil {
		if err := statemachine.ValidateTransition(rd.AttemptStatus, statemachine.CaptureFailed); err == nil {
			rd.AttemptStatus = statemachine.CaptureFailed
		}
	} else if resp, ok := rd.Response.(*CaptureResponse); ok {
		if err := statemachine.ValidateTransition(rd.AttemptStatus, resp.Status); err != nil {
			return err
		}
		rd.AttemptStatus = resp.Status
		sum, err := rd.CapturedSoFar.Add(resp.CapturedAmount)
		if err != nil {
			return apperr.Wrap(apperr.KindIntegrity, err, "capture amount currency mismatch")
		}
		rd.CapturedSoFar = sum
	}
	rd.IntentStatus = statemachine.DeriveIntentStatus(rd.AttemptStatus, rd.CaptureMethod, rd.RetriesRemain())
	return store.PostUpdateTracker(ctx, rd)
}

// CaptureResponse is what a connector's HandleResponse produces for Capture.
type CaptureResponse struct {
	Status         statemachine.AttemptStatus
	CapturedAmount money.Amount
}

// VoidRequest cancels an authorized-but-not-captured attempt.
type VoidRequest struct {
	CancellationReason string
}

type voidOp struct{}

// NewVoidOperation returns the Void Operation.
func NewVoidOperation() Operation { return voidOp{} }

func (voidOp) Name() Name { return FlowVoid }

func (voidOp) Validate(ctx context.Context, rd *RouterData) error { return nil }

func (voidOp) GetTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.GetTracker(ctx, rd)
}

func (voidOp) Domain(ctx context.Context, rd *RouterData) error {
	if rd.AttemptStatus != statemachine.Authorized {
		return fmt.Errorf("void: attempt %s not authorized (status=%s)", rd.AttemptID, rd.AttemptStatus)
	}
	return nil
}

func (voidOp) Decide(ctx context.Context, rd *RouterData) Decision { return Trigger }

func (voidOp) UpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	if err := statemachine.ValidateTransition(rd.AttemptStatus, statemachine.VoidInitiated); err != nil {
		return err
	}
	rd.AttemptStatus = statemachine.VoidInitiated
	return store.UpdateTracker(ctx, rd)
}

func (voidOp) PostUpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	if rd.Err != nil {
		if err := statemachine.ValidateTransition(rd.AttemptStatus, statemachine.VoidFailed); err == nil {
			rd.AttemptStatus = statemachine.VoidFailed
		}
	} else if resp, ok := rd.Response.(*VoidResponse); ok {
		if err := statemachine.ValidateTransition(rd.AttemptStatus, resp.Status); err != nil {
			return err
		}
		rd.AttemptStatus = resp.Status
	}
	rd.IntentStatus = statemachine.DeriveIntentStatus(rd.AttemptStatus, rd.CaptureMethod, rd.RetriesRemain())
	return store.PostUpdateTracker(ctx, rd)
}

// VoidResponse is what a connector's HandleResponse produces for Void.
type VoidResponse struct {
	Status statemachine.AttemptStatus
}

// SyncRequest asks the connector for the attempt's current status,
// reconciling state the engine may have missed (a dropped webhook, a
// timed-out call whose outcome is actually known to the connector).
type SyncRequest struct{}

type syncOp struct{}

// NewSyncOperation returns the Sync Operation.
func NewSyncOperation() Operation { return syncOp{} }

func (syncOp) Name() Name { return FlowSync }

func (syncOp) Validate(ctx context.Context, rd *RouterData) error { return nil }

func (syncOp) GetTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.GetTracker(ctx, rd)
}

func (syncOp) Domain(ctx context.Context, rd *RouterData) error { return nil }

func (syncOp) Decide(ctx context.Context, rd *RouterData) Decision {
	if rd.ConnectorTransactionID == "" {
		return Skip // never reached the connector, nothing to reconcile
	}
	if rd.IntentStatus.IsTerminal() {
		return Skip
	}
	return Trigger
}

func (syncOp) UpdateTracker(ctx context.Context, rd *RouterData, store Store) error { return nil }

func (syncOp) PostUpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	if rd.Err == nil {
		if resp, ok := rd.Response.(*SyncResponse); ok {
			if err := statemachine.ValidateTransition(rd.AttemptStatus, resp.Status); err == nil {
				rd.AttemptStatus = resp.Status
			}
			// A backward/unchanged sync result is not an error: it just
			// means the engine's view was already current.
		}
	}
	rd.IntentStatus = statemachine.DeriveIntentStatus(rd.AttemptStatus, rd.CaptureMethod, rd.RetriesRemain())
	return store.PostUpdateTracker(ctx, rd)
}

// SyncResponse is what a connector's HandleResponse produces for Sync.
type SyncResponse struct {
	Status statemachine.AttemptStatus
}
