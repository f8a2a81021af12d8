package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/flow"
	"github.com/mstgnz/payflow/handler"
	"github.com/mstgnz/payflow/infra/auth"
	"github.com/mstgnz/payflow/infra/config"
	"github.com/mstgnz/payflow/infra/middle"
	"github.com/mstgnz/payflow/webhook"
)

// Routes defines all v1 API routes
func Routes(r chi.Router, registry *connector.Registry, executor *flow.Executor, store flow.Store, locks *flow.IntentLock, providerConfig *config.ProviderConfig, webhooks *webhook.Pipeline, jwtService *auth.JWTService, tenantService *auth.TenantService) {
	// Initialize handlers
	validate := validator.New()
	paymentHandler := handler.NewPaymentHandler(registry, executor, store, locks, providerConfig, webhooks, validate)
	configHandler := handler.NewConfigHandler(providerConfig, registry, validate)
	authHandler := handler.NewAuthHandler(tenantService, jwtService, validate)

	// Public auth routes (no authentication required)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register) // self-registration, closes once a tenant exists
		r.Post("/refresh", authHandler.RefreshToken)
		r.Post("/validate", authHandler.ValidateToken)
	})

	// Protected routes (JWT authentication required)
	r.Group(func(r chi.Router) {
		// Add JWT authentication middleware
		r.Use(middle.JWTAuthMiddleware(jwtService))

		// Protected auth endpoints (add them directly to the group, not as a separate route)
		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/change-password", authHandler.ChangePassword)
		r.Get("/auth/profile", authHandler.GetProfile)
		r.Post("/auth/tenants", authHandler.CreateTenant) // admin-only: requires tenant_id "1"

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/{provider}", paymentHandler.ProcessPayment)
			r.Get("/{provider}/{paymentID}", paymentHandler.GetPaymentStatus)
			r.Post("/{provider}/{paymentID}/capture", paymentHandler.CapturePayment)
			r.Delete("/{provider}/{paymentID}", paymentHandler.CancelPayment)
			r.Post("/{provider}/{paymentID}/refund", paymentHandler.RefundPayment)
		})

		// Configuration routes
		r.Route("/config", func(r chi.Router) {
			r.Post("/tenant-config", configHandler.SetEnv)
			r.Get("/tenant-config", configHandler.GetTenantConfig)
			r.Delete("/tenant-config", configHandler.DeleteTenantConfig)
			r.Get("/stats", configHandler.GetStats)
		})

		// Legacy routes for backward compatibility
		r.Route("/set-env", func(r chi.Router) {
			r.Post("/", configHandler.SetEnv)
		})
	})

	// Public callback and webhook routes (no authentication)
	r.Route("/callback", func(r chi.Router) {
		r.HandleFunc("/{provider}", paymentHandler.HandleCallback)
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/{provider}", paymentHandler.HandleWebhook)
	})
}
