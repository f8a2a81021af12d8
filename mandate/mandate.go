// Package mandate implements recurring-payment mandate lifecycle state and
// the vault contract for storing payment-method references without ever
// persisting raw PAN data, the same "opaque provider config, never the
// secret itself" discipline the teacher applies to connector credentials
// (infra/config/provider_config.go) applied instead to cardholder data.
package mandate

import "time"

// Status is the closed set of states a Mandate may be in.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusRevoked  Status = "revoked"
	StatusExpired  Status = "expired"
	StatusFailed   Status = "failed"
)

// Mandate records a customer's standing authorization for a connector to
// charge them again without further interactive authentication.
type Mandate struct {
	ID                  string
	CustomerID          string
	ConnectorID         string
	ConnectorMandateID  string
	PaymentMethodToken  string
	Status              Status
	MaxAmountMinor      int64
	Currency            string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Revoke transitions an active or pending mandate to revoked. It is a
// no-op (not an error) if the mandate is already revoked, and refuses to
// revive an expired or failed mandate.
func (m *Mandate) Revoke() error {
	switch m.Status {
	case StatusRevoked:
		return nil
	case StatusExpired, StatusFailed:
		return errMandateNotRevocable
	default:
		m.Status = StatusRevoked
		m.UpdatedAt = time.Now()
		return nil
	}
}

var errMandateNotRevocable = mandateError("mandate: cannot revoke a mandate in a terminal non-active state")

type mandateError string

func (e mandateError) Error() string { return string(e) }
