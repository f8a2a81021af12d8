package money

import (
	"crypto/rand"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// idPrefix disambiguates the entity kind at a glance in logs, the way the
// teacher's callback state and log rows carry a provider/tenant prefix.
type idPrefix string

const (
	prefixIntent  idPrefix = "int"
	prefixAttempt idPrefix = "att"
	prefixMandate idPrefix = "man"
	prefixPayout  idPrefix = "pay"
	prefixRefund  idPrefix = "ref"
)

func newID(p idPrefix) string {
	return fmt.Sprintf("%s_%s", p, ulid.MustNew(ulid.Now(), rand.Reader).String())
}

// NewIntentID returns a globally unique, time-ordered PaymentIntent id.
func NewIntentID() string { return newID(prefixIntent) }

// NewAttemptID returns a globally unique, time-ordered PaymentAttempt id.
func NewAttemptID() string { return newID(prefixAttempt) }

// NewMandateID returns a globally unique, time-ordered Mandate id.
func NewMandateID() string { return newID(prefixMandate) }

// NewPayoutID returns a globally unique, time-ordered Payout id.
func NewPayoutID() string { return newID(prefixPayout) }

// NewRefundID returns a globally unique, time-ordered Refund id.
func NewRefundID() string { return newID(prefixRefund) }
