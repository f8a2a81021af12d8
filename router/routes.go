package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/infra/auth"
	"github.com/mstgnz/payflow/infra/config"
	v1 "github.com/mstgnz/payflow/router/v1"
	"github.com/mstgnz/payflow/webhook"

	// Import for side-effect registration into connector.Default
	_ "github.com/mstgnz/payflow/providers/akbank"
	_ "github.com/mstgnz/payflow/providers/iyzico"
	_ "github.com/mstgnz/payflow/providers/nkolay"
	_ "github.com/mstgnz/payflow/providers/ozanpay"
	_ "github.com/mstgnz/payflow/providers/papara"
	_ "github.com/mstgnz/payflow/providers/paycell"
	_ "github.com/mstgnz/payflow/providers/payten"
	_ "github.com/mstgnz/payflow/providers/paytr"
	_ "github.com/mstgnz/payflow/providers/payu"
	_ "github.com/mstgnz/payflow/providers/stripe"
	_ "github.com/mstgnz/payflow/providers/ziraat"
)

// Routes mounts the payment-engine's v1 API onto r.
func Routes(r chi.Router, registry *connector.Registry, executor *flow.Executor, store flow.Store, locks *flow.IntentLock, providerConfig *config.ProviderConfig, webhooks *webhook.Pipeline, jwtService *auth.JWTService, tenantService *auth.TenantService) {
	v1.Routes(r, registry, executor, store, locks, providerConfig, webhooks, jwtService, tenantService)
}
