package payten

import (
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/config"
)

func init() {
	merchant := config.GetEnv("PAYTEN_MERCHANT", "")
	merchantUser := config.GetEnv("PAYTEN_MERCHANT_USER", "")
	merchantPassword := config.GetEnv("PAYTEN_MERCHANT_PASSWORD", "")
	secretKey := config.GetEnv("PAYTEN_SECRET_KEY", "")
	isProduction := config.GetEnv("PAYTEN_ENVIRONMENT", "sandbox") == "production"
	connector.Register("payten", New(merchant, merchantUser, merchantPassword, secretKey, isProduction).Capability(), func(cfg map[string]string) (connector.Connector, error) {
		m := cfg["merchant"]
		if m == "" {
			m = merchant
		}
		mu := cfg["merchantUser"]
		if mu == "" {
			mu = merchantUser
		}
		mp := cfg["merchantPassword"]
		if mp == "" {
			mp = merchantPassword
		}
		sk := cfg["secretKey"]
		if sk == "" {
			sk = secretKey
		}
		env := cfg["environment"]
		prod := isProduction
		if env != "" {
			prod = env == "production"
		}
		return New(m, mu, mp, sk, prod), nil
	})
}
