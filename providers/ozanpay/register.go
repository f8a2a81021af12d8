package ozanpay

import (
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/config"
)

func init() {
	connector.Register("ozanpay", (&OzanPay{}).Capability(), func(cfg map[string]string) (connector.Connector, error) {
		apiKey := cfg["apiKey"]
		secretKey := cfg["secretKey"]
		merchantID := cfg["merchantId"]
		if apiKey == "" {
			apiKey = config.GetEnv("OZANPAY_API_KEY", "")
		}
		if secretKey == "" {
			secretKey = config.GetEnv("OZANPAY_SECRET_KEY", "")
		}
		if merchantID == "" {
			merchantID = config.GetEnv("OZANPAY_MERCHANT_ID", "")
		}
		return New(apiKey, secretKey, merchantID), nil
	})
}
