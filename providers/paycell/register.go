package paycell

import (
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/infra/config"
)

func init() {
	username := config.GetEnv("PAYCELL_USERNAME", "")
	password := config.GetEnv("PAYCELL_PASSWORD", "")
	secureCode := config.GetEnv("PAYCELL_SECURE_CODE", "")
	isProduction := config.GetEnv("PAYCELL_ENVIRONMENT", "sandbox") == "production"
	connector.Register("paycell", New(username, password, secureCode, isProduction).Capability(), func(cfg map[string]string) (connector.Connector, error) {
		u := cfg["username"]
		if u == "" {
			u = username
		}
		pw := cfg["password"]
		if pw == "" {
			pw = password
		}
		sc := cfg["secureCode"]
		if sc == "" {
			sc = secureCode
		}
		env := cfg["environment"]
		prod := isProduction
		if env != "" {
			prod = env == "production"
		}
		return New(u, pw, sc, prod), nil
	})
}
