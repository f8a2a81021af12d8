package iyzico

import (
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/config"
)

func init() {
	connector.Register("iyzico", (&Iyzico{}).Capability(), func(cfg map[string]string) (connector.Connector, error) {
		apiKey := cfg["apiKey"]
		secretKey := cfg["secretKey"]
		if apiKey == "" {
			apiKey = config.GetEnv("IYZICO_API_KEY", "")
		}
		if secretKey == "" {
			secretKey = config.GetEnv("IYZICO_SECRET_KEY", "")
		}
		return NewIyzico(apiKey, secretKey), nil
	})
}
