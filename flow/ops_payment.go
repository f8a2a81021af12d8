package flow

import (
	"context"
	"fmt"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/statemachine"
	"github.com/mstgnz/payflow/threeds"
)

// AuthorizeRequest is the neutral request payload for the Authorize
// (confirm) flow, translated into a connector-native body by
// Connector.GetRequestBody.
type AuthorizeRequest struct {
	PaymentMethodToken string
	Amount             string
	Currency           string
	CaptureMethod      statemachine.CaptureMethod
	SetupFutureUsage   string
	CustomerID         string
	Use3DS             bool
	ReturnURL          string

	// ThreeDSAuth carries the PostAuthentication proof (authentication
	// value/ECI/trans status) for connectors that require a follow-up
	// authorize call, rather than a dedicated complete-authorize endpoint,
	// once the customer has cleared the ACS challenge. It is stitched in by
	// completeAuthorizeOp.Domain when a connector's capability requires it.
	ThreeDSAuth *threeds.AuthenticationContext
}

// createOp implements flow.Operation for PaymentIntent creation. It never
// calls a connector: it only validates and persists the initial intent row.
type createOp struct{}

// NewCreateOperation returns the PaymentIntent-creation Operation.
func NewCreateOperation() Operation { return createOp{} }

func (createOp) Name() Name { return FlowCreate }

func (createOp) Validate(ctx context.Context, rd *RouterData) error {
	if rd.Amount.IsZero() || !rd.Amount.IsPositive() {
		return fmt.Errorf("create: amount must be positive")
	}
	return nil
}

func (createOp) GetTracker(ctx context.Context, rd *RouterData, store Store) error {
	return nil // nothing to load yet; the intent does not exist until UpdateTracker
}

func (createOp) Domain(ctx context.Context, rd *RouterData) error {
	rd.IntentStatus = statemachine.RequiresPaymentMethod
	return nil
}

func (createOp) Decide(ctx context.Context, rd *RouterData) Decision { return Skip }

func (createOp) UpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.UpdateTracker(ctx, rd)
}

func (createOp) PostUpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.PostUpdateTracker(ctx, rd)
}

// UpdateIntentRequest carries the fields a not-yet-confirmed intent may
// still mutate before Authorize. AllowedPaymentMethodTypes, when non-empty,
// restricts which payment method types the merchant will accept for this
// intent; Domain intersects it against the currently-selected connector's
// Capability so an update can never leave the intent pointed at a method
// the connector cannot actually process.
type UpdateIntentRequest struct {
	AllowedPaymentMethodTypes []string
}

// updateIntentOp implements the UpdateIntent flow: mutating a
// not-yet-confirmed intent's amount/currency/capture_method/allowed payment
// method types. Per the fix noted in the expanded spec, Domain here only
// accepts a field change the currently-selected connector's Capability
// actually supports (e.g. refusing to flip capture_method to manual against
// a connector whose capability record doesn't list it, or allowing a
// payment method type list that doesn't intersect the connector's supported
// methods at all), rather than accepting any mutation blindly and failing
// later at Confirm time.
type updateIntentOp struct{}

// NewUpdateIntentOperation returns the PaymentIntent-update Operation.
func NewUpdateIntentOperation() Operation { return updateIntentOp{} }

func (updateIntentOp) Name() Name { return FlowUpdateIntent }

func (updateIntentOp) Validate(ctx context.Context, rd *RouterData) error {
	if rd.IntentID == "" {
		return fmt.Errorf("update_intent: intent id required")
	}
	return nil
}

func (updateIntentOp) GetTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.GetTracker(ctx, rd)
}

func (updateIntentOp) Domain(ctx context.Context, rd *RouterData) error {
	if rd.IntentStatus.IsTerminal() {
		return fmt.Errorf("update_intent: intent %s is already terminal", rd.IntentID)
	}

	req, ok := rd.Request.(*UpdateIntentRequest)
	if !ok || req == nil || len(req.AllowedPaymentMethodTypes) == 0 {
		return nil
	}

	cap, _ := connector.Default.Capability(rd.ConnectorID)
	allowed := make([]string, 0, len(req.AllowedPaymentMethodTypes))
	for _, method := range req.AllowedPaymentMethodTypes {
		if cap.SupportsMethod(method) {
			allowed = append(allowed, method)
		}
	}
	if len(allowed) == 0 {
		return fmt.Errorf("update_intent: none of the requested payment method types are supported by connector %s", rd.ConnectorID)
	}
	req.AllowedPaymentMethodTypes = allowed
	return nil
}

func (updateIntentOp) Decide(ctx context.Context, rd *RouterData) Decision { return Skip }

func (updateIntentOp) UpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.UpdateTracker(ctx, rd)
}

func (updateIntentOp) PostUpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.PostUpdateTracker(ctx, rd)
}

// authorizeOp implements the Confirm/Authorize flow: the first connector
// call of an intent's lifecycle.
type authorizeOp struct{}

// NewAuthorizeOperation returns the Authorize Operation.
func NewAuthorizeOperation() Operation { return authorizeOp{} }

func (authorizeOp) Name() Name { return FlowAuthorize }

func (authorizeOp) Validate(ctx context.Context, rd *RouterData) error {
	req, ok := rd.Request.(*AuthorizeRequest)
	if !ok || req == nil {
		return fmt.Errorf("authorize: request payload missing")
	}
	if req.PaymentMethodToken == "" {
		return fmt.Errorf("authorize: payment_method_token required")
	}
	return nil
}

func (authorizeOp) GetTracker(ctx context.Context, rd *RouterData, store Store) error {
	return store.GetTracker(ctx, rd)
}

func (authorizeOp) Domain(ctx context.Context, rd *RouterData) error {
	if rd.IntentStatus != statemachine.RequiresPaymentMethod && rd.IntentStatus != statemachine.RequiresConfirmation {
		return fmt.Errorf("authorize: intent %s not awaiting confirmation (status=%s)", rd.IntentID, rd.IntentStatus)
	}

	req := rd.Request.(*AuthorizeRequest)
	if req.ThreeDSAuth != nil {
		outcome, err := threeds.MapTransStatus(req.ThreeDSAuth.TransStatus)
		if err != nil {
			return fmt.Errorf("authorize: %w", err)
		}
		if outcome == threeds.OutcomeFailed {
			return fmt.Errorf("authorize: 3DS authentication failed for attempt %s", rd.AttemptID)
		}
	}

	rd.AttemptStatus = statemachine.Started
	return nil
}

func (authorizeOp) Decide(ctx context.Context, rd *RouterData) Decision {
	if rd.IntentStatus.IsTerminal() {
		return Avoid
	}
	return Trigger
}

func (authorizeOp) UpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	if err := statemachine.ValidateTransition(rd.AttemptStatus, statemachine.Authorizing); err != nil {
		return err
	}
	rd.AttemptStatus = statemachine.Authorizing
	return store.UpdateTracker(ctx, rd)
}

func (authorizeOp) PostUpdateTracker(ctx context.Context, rd *RouterData, store Store) error {
	if rd.Err != nil {
		if !applyErrTransition(rd) {
			return apperr.Wrap(apperr.KindInternal, rd.Err, "authorize failed and no valid failure transition applied")
		}
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

// requireAllowedRedirectURL rejects a connector-produced redirect/hosted-
// page URL whose host isn't in that connector's declared allowlist, so a
// buggy or compromised connector response can never hand the client a URL
// pointing somewhere unexpected.
func requireAllowedRedirectURL(connectorID, redirectURL string) error {
	cap, _ := connector.Default.Capability(connectorID)
	if !cap.AllowsRedirectURL(redirectURL) {
		return apperr.New(apperr.KindIntegrity, "connector returned a redirect URL outside its allowed hosts").
			With("connector", connectorID)
	}
	return nil
}

// AuthorizeResponse is what a connector's HandleResponse produces for the
// Authorize flow.
type AuthorizeResponse struct {
	Status                 statemachine.AttemptStatus
	ConnectorTransactionID string
	RedirectURL            string
}

// applyErrTransition moves rd.AttemptStatus to a failure terminal (or
// leaves it for the 3DS/confirmation-awaited flows to pick up) when a
// connector call returned an error, and reports whether a transition was
// actually applied.
func applyErrTransition(rd *RouterData) bool {
	target := statemachine.Failure
	if err := statemachine.ValidateTransition(rd.AttemptStatus, target); err != nil {
		return false
	}
	rd.AttemptStatus = target
	return true
}
