package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/guardian-api/internal/application/association"
	"github.com/guardian-api/internal/application/authentication"
	"github.com/guardian-api/internal/application/client"
	"github.com/guardian-api/internal/application/recovery"
	"github.com/guardian-api/internal/application/token"
	"github.com/guardian-api/internal/config"
	"github.com/guardian-api/internal/transport/http/handler"
	appmiddleware "github.com/guardian-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(appmiddleware.Metrics(deps.Metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appmiddleware.AdminKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authDeps := authentication.ServiceDeps{
		AccountRepo:     deps.Repos.Accounts,
		IdentityRepo:    deps.Repos.Identities,
		IntegrationRepo: deps.Repos.Integrations,
		Logger:          logger,
	}
	tokenDeps := token.ServiceDeps{
		TokenRepo:       deps.Repos.Tokens,
		JWTProvider:     deps.JWTProvider,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		Logger:          logger,
	}
	assocDeps := association.ServiceDeps{
		AccountRepo:     deps.Repos.Accounts,
		IdentityRepo:    deps.Repos.Identities,
		IntegrationRepo: deps.Repos.Integrations,
		Logger:          logger,
	}
	recoveryDeps := recovery.ServiceDeps{
		AccountRepo:      deps.Repos.Accounts,
		IdentityRepo:     deps.Repos.Identities,
		IntegrationRepo:  deps.Repos.Integrations,
		RecoveryCodeRepo: deps.Repos.RecoveryCodes,
		Mailer:           deps.Mailer,
		Logger:           logger,
	}
	// Optional collaborators are only set when present so the services never
	// see a typed nil behind a non-nil interface.
	if deps.Events != nil {
		authDeps.Events = deps.Events
		assocDeps.Events = deps.Events
		recoveryDeps.Events = deps.Events
	}
	if deps.Metrics != nil {
		authDeps.Metrics = deps.Metrics
		tokenDeps.Metrics = deps.Metrics
	}

	authSvc := authentication.NewService(authDeps)
	tokenSvc := token.NewService(tokenDeps)
	assocSvc := association.NewService(assocDeps)
	recoverySvc := recovery.NewService(recoveryDeps)
	clientSvc := client.NewService(client.ServiceDeps{ClientRepo: deps.Repos.Clients, Logger: logger})

	sensitiveRL := deps.RateLimiter
	if sensitiveRL == nil {
		// 5 requests/second, burst of 10.
		sensitiveRL = appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	}
	authMw := appmiddleware.Auth(tokenSvc)

	healthH := handler.NewHealthHandler()
	registerH := handler.NewRegistrationHandler(authSvc, tokenSvc, deps.Verifiers)
	oauthH := handler.NewOAuthHandler(authSvc, tokenSvc, clientSvc, deps.Verifiers)
	identityH := handler.NewIdentityHandler(assocSvc, recoverySvc, deps.Verifiers)
	recoveryH := handler.NewRecoveryHandler(recoverySvc)
	clientH := handler.NewClientHandler(clientSvc)

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)

			r.Post("/register/account", registerH.Account)
			r.Post("/register/integration", registerH.Integration)
			r.Post("/oauth/token", oauthH.Token)
			r.Post("/recovery/reset-password/request", recoveryH.RequestPasswordReset)
			r.Post("/recovery/reset-password", recoveryH.ResetPassword)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/identity/account", identityH.AddAccount)
			r.Post("/identity/integrations", identityH.AddIntegration)
			r.Delete("/identity/integrations/{platform}", identityH.RemoveIntegration)
			r.Delete("/identity", identityH.Delete)

			r.Post("/recovery/codes/{type}", recoveryH.RequestCode)
			r.Post("/recovery/verify-email", recoveryH.VerifyEmail)
			r.Post("/recovery/change-email", recoveryH.ChangeEmail)
			r.Post("/recovery/change-password", recoveryH.ChangePassword)
		})

		// ── Admin routes ─────────────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.RequireAdminKey(cfg.AdminAPIKey))

			r.Post("/clients", clientH.Create)
			r.Get("/clients/{id}", clientH.Get)
			r.Post("/clients/{id}/secret", clientH.RotateSecret)
			r.Delete("/clients/{id}", clientH.Delete)
		})
	})

	return r
}
