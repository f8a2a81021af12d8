package papara

import (
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/config"
)

func init() {
	apiKey := config.GetEnv("PAPARA_API_KEY", "")
	isProduction := config.GetEnv("PAPARA_ENVIRONMENT", "sandbox") == "production"
	connector.Register("papara", New(apiKey, isProduction).Capability(), func(cfg map[string]string) (connector.Connector, error) {
		key := cfg["apiKey"]
		if key == "" {
			key = apiKey
		}
		env := cfg["environment"]
		prod := isProduction
		if env != "" {
			prod = env == "production"
		}
		return New(key, prod), nil
	})
}
