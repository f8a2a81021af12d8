package akbank

import (
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/config"
)

func init() {
	merchantSafeID := config.GetEnv("AKBANK_MERCHANT_SAFE_ID", "")
	terminalSafeID := config.GetEnv("AKBANK_TERMINAL_SAFE_ID", "")
	secretKey := config.GetEnv("AKBANK_SECRET_KEY", "")
	isProduction := config.GetEnv("AKBANK_ENVIRONMENT", "sandbox") == "production"
	connector.Register("akbank", New(merchantSafeID, terminalSafeID, secretKey, isProduction).Capability(), func(cfg map[string]string) (connector.Connector, error) {
		msid := cfg["merchantSafeId"]
		if msid == "" {
			msid = merchantSafeID
		}
		tsid := cfg["terminalSafeId"]
		if tsid == "" {
			tsid = terminalSafeID
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
		return New(msid, tsid, key, prod), nil
	})
}
