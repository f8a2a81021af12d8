package mandate

import "github.com/mstgnz/payflow/connector"

// FutureUsage mirrors the PaymentIntent.setup_future_usage attribute: the
// customer consent scope a merchant requests for a stored payment method.
type FutureUsage string

const (
	FutureUsageOffSession FutureUsage = "off_session"
	FutureUsageOnSession  FutureUsage = "on_session"
)

// ApplyCapabilityDowngrade implements the pre-connector-call rule: a
// merchant may request off_session reuse, but if the chosen connector
// cannot itself support unattended mandate charges, the engine downgrades
// the request to on_session rather than forwarding a guarantee the
// connector cannot honor. This must run in an Operation's Domain stage,
// before GetRequestBody ever sees the value.
func ApplyCapabilityDowngrade(cap connector.Capability, requested FutureUsage) FutureUsage {
	if requested == FutureUsageOffSession && !cap.SupportsMandates {
		return FutureUsageOnSession
	}
	return requested
}
