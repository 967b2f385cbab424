package cleancut

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	// Регистрация OpenAPI-документа для /docs.
	_ "github.com/magabrotheeeer/cleancut/docs"
	"github.com/magabrotheeeer/cleancut/internal/http/handlers/admin/ledger"
	"github.com/magabrotheeeer/cleancut/internal/http/handlers/admin/mutate"
	"github.com/magabrotheeeer/cleancut/internal/http/handlers/credits/balance"
	"github.com/magabrotheeeer/cleancut/internal/http/handlers/credits/consume"
	"github.com/magabrotheeeer/cleancut/internal/http/handlers/credits/usage"
	"github.com/magabrotheeeer/cleancut/internal/http/handlers/health"
	"github.com/magabrotheeeer/cleancut/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/cleancut/internal/http/middlewarectx"
)

// AuthService проверяет токены и решает, является ли вызывающий администратором.
type AuthService interface {
	middlewarectx.Service
	middlewarectx.AdminPolicy
}

// CreditService бизнес-логика баланса, нужная обработчикам.
type CreditService interface {
	balance.Service
	consume.Service
	usage.Service
	ledger.Service
	mutate.Service
}

// Deps зависимости маршрутов.
type Deps struct {
	Auth     AuthService
	Credits  CreditService
	Payments paymentwebhook.Service
	Verifier paymentwebhook.Verifier
	Limiter  *middlewarectx.AccountLimiter
	DB       health.Pinger
	Cache    health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", health.New(logger, map[string]health.Pinger{
		"postgres": deps.DB,
		"redis":    deps.Cache,
	}).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Webhook подписывается провайдером, bearer-токен не нужен.
		r.Post("/webhooks/paddle", paymentwebhook.New(logger, deps.Payments, deps.Verifier).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Auth, logger))

			r.Get("/credits", balance.New(logger, deps.Credits).ServeHTTP)
			r.Get("/credits/usage", usage.New(logger, deps.Credits).ServeHTTP)
			r.With(middlewarectx.RateLimitMiddleware(deps.Limiter, logger)).
				Post("/credits/consume", consume.New(logger, deps.Credits).ServeHTTP)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.RequireAdmin(deps.Auth, logger))
				r.Get("/ledgers/{userId}", ledger.New(logger, deps.Credits).ServeHTTP)
				r.Post("/credits", mutate.New(logger, deps.Credits).ServeHTTP)
			})
		})
	})
}
