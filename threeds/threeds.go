// Package threeds implements the three-stage external authentication
// sub-flow (PreAuthentication, Authentication, PostAuthentication) that
// stitches into a RouterData's Request between Authorize and
// CompleteAuthorize when a connector requires interactive 3-D Secure
// authentication, generalizing the teacher's Create3DPayment/Complete3DPayment
// split (provider/provider.go, provider/service.go) from "one 3DS-specific
// pair of methods per provider" into an explicit sub-flow any connector's
// capability record can opt into.
package threeds

import "fmt"

// TransStatus is the ACS/3DS-server transaction status code set (EMVCo 3DS
// 2.x "transStatus"), mapped from each connector's native response.
type TransStatus string

const (
	TransStatusSuccess          TransStatus = "Y"
	TransStatusAttempted        TransStatus = "A"
	TransStatusFailed           TransStatus = "N"
	TransStatusUnavailable      TransStatus = "U"
	TransStatusChallengeRequired TransStatus = "C"
	TransStatusRejected         TransStatus = "R"
)

// Stage identifies which of the three sub-flow steps is running.
type Stage string

const (
	StagePreAuthentication  Stage = "pre_authentication"
	StageAuthentication     Stage = "authentication"
	StagePostAuthentication Stage = "post_authentication"
)

// Outcome is the result of mapping a connector's native trans-status into
// the engine's decision about what to do next.
type Outcome string

const (
	OutcomeAuthenticated      Outcome = "authenticated"
	OutcomeChallengeRequired  Outcome = "challenge_required"
	OutcomeFailed             Outcome = "failed"
	OutcomeNotEnrolled        Outcome = "not_enrolled"
)

// MapTransStatus converts a connector's native transStatus value into an
// engine Outcome, the single place every connector's 3DS handling funnels
// through so the flow layer never branches on a connector-specific string.
func MapTransStatus(status TransStatus) (Outcome, error) {
	switch status {
	case TransStatusSuccess:
		return OutcomeAuthenticated, nil
	case TransStatusAttempted:
		return OutcomeAuthenticated, nil // liability shift still applies per EMVCo
	case TransStatusChallengeRequired:
		return OutcomeChallengeRequired, nil
	case TransStatusUnavailable:
		return OutcomeNotEnrolled, nil
	case TransStatusFailed, TransStatusRejected:
		return OutcomeFailed, nil
	default:
		return "", fmt.Errorf("threeds: unrecognized transStatus %q", status)
	}
}

// AuthenticationContext carries the per-attempt 3DS state threaded between
// the three sub-flow stages via RouterData.Request. Once PostAuthentication
// completes, AuthenticationValue/ECI/TransStatus are the liability-shift
// proof a connector's confirm/authorize call must carry.
type AuthenticationContext struct {
	Stage                Stage
	ThreeDSServerTransID string
	ACSTransID           string
	ACSURL               string
	ChallengeRequest     string
	TransStatus          TransStatus
	MessageVersion       string

	// AuthenticationValue is the CAVV/AAV cryptogram the ACS returns on
	// successful (or attempted) authentication.
	AuthenticationValue string
	// ECI is the E-Commerce Indicator the card network assigns based on
	// TransStatus, required alongside AuthenticationValue on the connector's
	// authorize call for the liability shift to apply.
	ECI string
}

// NextStage returns the sub-flow stage that follows the current one, or
// "" once PostAuthentication has completed.
func (a AuthenticationContext) NextStage() Stage {
	switch a.Stage {
	case StagePreAuthentication:
		return StageAuthentication
	case StageAuthentication:
		return StagePostAuthentication
	default:
		return ""
	}
}
