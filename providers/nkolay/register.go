package nkolay

import (
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/config"
)

func init() {
	sx := config.GetEnv("NKOLAY_SX", "")
	sxCancel := config.GetEnv("NKOLAY_SX_CANCEL", "")
	sxList := config.GetEnv("NKOLAY_SX_LIST", "")
	secretKey := config.GetEnv("NKOLAY_SECRET_KEY", "")
	isProduction := config.GetEnv("NKOLAY_ENVIRONMENT", "sandbox") == "production"
	connector.Register("nkolay", New(sx, sxCancel, sxList, secretKey, isProduction).Capability(), func(cfg map[string]string) (connector.Connector, error) {
		s := cfg["sx"]
		if s == "" {
			s = sx
		}
		sc := cfg["sxCancel"]
		if sc == "" {
			sc = sxCancel
		}
		sl := cfg["sxList"]
		if sl == "" {
			sl = sxList
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
		return New(s, sc, sl, key, prod), nil
	})
}
