package stripe

import (
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/config"
)

func init() {
	connector.Register("stripe", (&Stripe{}).Capability(), func(cfg map[string]string) (connector.Connector, error) {
		secretKey := cfg["secretKey"]
		if secretKey == "" {
			secretKey = config.GetEnv("STRIPE_SECRET_KEY", "")
		}
		return NewStripe(secretKey), nil
	})
}
