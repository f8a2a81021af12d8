package payu

import (
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/config"
)

func init() {
	merchantID := config.GetEnv("PAYU_MERCHANT_ID", "")
	secretKey := config.GetEnv("PAYU_SECRET_KEY", "")
	isProduction := config.GetEnv("PAYU_ENVIRONMENT", "sandbox") == "production"
	connector.Register("payu", New(merchantID, secretKey, isProduction).Capability(), func(cfg map[string]string) (connector.Connector, error) {
		mid := cfg["merchantId"]
		if mid == "" {
			mid = merchantID
		}
		key := cfg["secretKey"]
		if key == "" {
			key = secretKey
		}
		env := cfg["environment"]
		prod := isProduction
		if env != "" {
			prod = env == "production"
		}
		return New(mid, key, prod), nil
	})
}
