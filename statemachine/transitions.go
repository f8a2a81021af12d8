package statemachine

import "fmt"

// transitionDAG lists, for each AttemptStatus, the set of statuses it may
// legally advance to. A status absent from the map (the terminal ones) has
// no outgoing edges. The engine rejects any edge not in this table as an
// implementation bug per spec §4.6 ("the engine rejects backward
// transitions... and logs without mutating stored state").
var transitionDAG = map[AttemptStatus]map[AttemptStatus]bool{
	Started: set(Authorizing, AuthenticationPending, PaymentMethodAwaited, ConfirmationAwaited, Pending, Failure),
	PaymentMethodAwaited: set(ConfirmationAwaited, Authorizing, Pending, Failure),
	ConfirmationAwaited: set(Authorizing, AuthenticationPending, Pending, Failure),
	AuthenticationPending: set(AuthenticationSuccessful, Failure, Pending, DeviceDataCollectionPending),
	DeviceDataCollectionPending: set(AuthenticationPending, AuthenticationSuccessful, Failure),
	AuthenticationSuccessful: set(Authorizing, Authorized, Charged, Failure, Pending),
	Authorizing: set(Authorized, AuthorizationFailed, Pending, Failure, Unresolved, CodInitiated),
	Authorized: set(CaptureInitiated, Charged, PartialCharged, VoidInitiated, Pending, Unresolved),
	CaptureInitiated: set(Charged, PartialCharged, PartialChargedAndChargeable, CaptureFailed, Pending),
	PartialCharged: set(PartialChargedAndChargeable, AutoRefunded, Unresolved),
	PartialChargedAndChargeable: set(PartialCharged, CaptureInitiated, VoidInitiated),
	VoidInitiated: set(Voided, VoidFailed, Pending),
	CodInitiated: set(Charged, AuthorizationFailed, Pending),
	Pending: set(Authorized, Charged, AuthorizationFailed, Failure, Voided, CaptureFailed, VoidFailed, PartialCharged, Unresolved, AuthenticationPending),
	Unresolved: set(Authorized, Charged, Failure, PartialCharged),
	// Terminal: Charged, AuthorizationFailed, Voided, VoidFailed, CaptureFailed,
	// AutoRefunded, Failure have no outgoing edges except via a brand new
	// attempt (a new AttemptStatus graph instance), which is not a transition.
}

func set(items ...AttemptStatus) map[AttemptStatus]bool {
	m := make(map[AttemptStatus]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// ValidateTransition reports an error if moving an attempt from `from` to
// `to` is not a legal forward edge in the DAG. Calling it with from == to
// is always legal (idempotent re-application of the same status, e.g. a
// duplicate Sync response).
func ValidateTransition(from, to AttemptStatus) error {
	if from == to {
		return nil
	}
	edges, ok := transitionDAG[from]
	if !ok || !edges[to] {
		return fmt.Errorf("statemachine: illegal attempt transition %s -> %s", from, to)
	}
	return nil
}

// DeriveIntentStatus implements the (AttemptStatus, CaptureMethod) ->
// IntentStatus table of spec §4.6, e.g. (Authorized, Manual) ->
// RequiresCapture; (Charged, _) -> Succeeded; (Failure, _) -> Failed unless
// retriesRemain; (Pending, _) -> Processing.
func DeriveIntentStatus(attempt AttemptStatus, capture CaptureMethod, retriesRemain bool) IntentStatus {
	switch attempt {
	case Charged:
		return Succeeded
	case PartialCharged, PartialChargedAndChargeable:
		return PartiallyCaptured
	case Authorized:
		if capture == CaptureManual || capture == CaptureSequentialAuto {
			return RequiresCapture
		}
		return Processing
	case CaptureInitiated:
		return Processing
	case AuthenticationPending, DeviceDataCollectionPending:
		return RequiresCustomerAction
	case Unresolved:
		return RequiresMerchantAction
	case Voided:
		return Cancelled
	case VoidFailed, CaptureFailed, AuthorizationFailed, Failure:
		if retriesRemain {
			return RequiresConfirmation
		}
		return Failed
	case PaymentMethodAwaited:
		return RequiresPaymentMethod
	case ConfirmationAwaited:
		return RequiresConfirmation
	case Pending, Authorizing, AuthenticationSuccessful, CodInitiated, VoidInitiated:
		return Processing
	case AutoRefunded:
		return Succeeded
	default:
		return Processing
	}
}
