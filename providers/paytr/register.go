package paytr

import (
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/config"
)

func init() {
	merchantID := config.GetEnv("PAYTR_MERCHANT_ID", "")
	merchantKey := config.GetEnv("PAYTR_MERCHANT_KEY", "")
	merchantSalt := config.GetEnv("PAYTR_MERCHANT_SALT", "")
	isProduction := config.GetEnv("PAYTR_ENVIRONMENT", "sandbox") == "production"
	connector.Register("paytr", New(merchantID, merchantKey, merchantSalt, isProduction).Capability(), func(cfg map[string]string) (connector.Connector, error) {
		id := cfg["merchantId"]
		if id == "" {
			id = merchantID
		}
		key := cfg["merchantKey"]
		if key == "" {
			key = merchantKey
		}
		salt := cfg["merchantSalt"]
		if salt == "" {
			salt = merchantSalt
		}
		env := cfg["environment"]
		prod := isProduction
		if env != "" {
			prod = env == "production"
		}
		return New(id, key, salt, prod), nil
	})
}
