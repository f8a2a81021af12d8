package ziraat

import (
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/config"
)

func init() {
	merchantSafeID := config.GetEnv("ZIRAAT_MERCHANT_SAFE_ID", "")
	terminalSafeID := config.GetEnv("ZIRAAT_TERMINAL_SAFE_ID", "")
	secretKey := config.GetEnv("ZIRAAT_SECRET_KEY", "")
	isProduction := config.GetEnv("ZIRAAT_ENVIRONMENT", "sandbox") == "production"
	connector.Register("ziraat", New(merchantSafeID, terminalSafeID, secretKey, isProduction).Capability(), func(cfg map[string]string) (connector.Connector, error) {
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
