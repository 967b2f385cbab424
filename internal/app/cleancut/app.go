// Package cleancut собирает HTTP-приложение сервиса кредитов.
package cleancut

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/cleancut/internal/billing"
	"github.com/magabrotheeeer/cleancut/internal/cache"
	"github.com/magabrotheeeer/cleancut/internal/config"
	"github.com/magabrotheeeer/cleancut/internal/http/middlewarectx"
	"github.com/magabrotheeeer/cleancut/internal/lib/jwt"
	"github.com/magabrotheeeer/cleancut/internal/lib/sl"
	"github.com/magabrotheeeer/cleancut/internal/metrics"
	"github.com/magabrotheeeer/cleancut/internal/migrations"
	"github.com/magabrotheeeer/cleancut/internal/paddle"
	"github.com/magabrotheeeer/cleancut/internal/rabbitmq"
	authservice "github.com/magabrotheeeer/cleancut/internal/services/auth"
	creditservice "github.com/magabrotheeeer/cleancut/internal/services/credits"
	paymentservice "github.com/magabrotheeeer/cleancut/internal/services/payment"
	"github.com/magabrotheeeer/cleancut/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App держит HTTP-сервер и все внешние подключения.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	amqp   *amqp.Connection
	ch     *amqp.Channel
}

// New поднимает подключения, применяет миграции и собирает маршруты.
// При ошибке уже открытые подключения закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *App, err error) {
	const op = "app.cleancut.New"

	app = &App{logger: logger}
	defer func() {
		if err != nil {
			app.close()
			app = nil
		}
	}()

	app.db, err = repository.New(cfg.StorageConnectionString)
	if err != nil {
		return app, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(app.db.DB, cfg.MigrationsPath); err != nil {
		return app, fmt.Errorf("%s: %w", op, err)
	}
	if err = repository.CheckDatabaseReady(ctx, app.db); err != nil {
		return app, fmt.Errorf("%s: %w", op, err)
	}

	app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return app, fmt.Errorf("%s: %w", op, err)
	}

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return app, fmt.Errorf("%s: %w", op, err)
	}

	// Интерфейсные переменные остаются nil, если публикация отключена.
	var (
		usagePublisher creditservice.Publisher
		grantPublisher paymentservice.Publisher
	)
	if cfg.RabbitMQ.URL != "" {
		app.amqp, err = rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.ConnRetries, cfg.ConnInterval)
		if err != nil {
			return app, fmt.Errorf("%s: %w", op, err)
		}
		app.ch, err = rabbitmq.SetupChannel(app.amqp, cfg.Exchange, []rabbitmq.QueueConfig{
			{QueueName: "cleancut.usage", RoutingKey: rabbitmq.RoutingUsageRecorded},
			{QueueName: "cleancut.grants", RoutingKey: rabbitmq.RoutingCreditsGranted},
		})
		if err != nil {
			return app, fmt.Errorf("%s: %w", op, err)
		}
		publisher := rabbitmq.NewPublisher(app.ch, cfg.Exchange)
		usagePublisher = publisher
		grantPublisher = publisher
	} else {
		logger.Warn("rabbitmq url is empty, event publishing disabled")
	}

	authService := authservice.NewAuthService(
		jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		cfg.AdminRole,
		cfg.AdminEmails,
	)
	creditService := creditservice.NewCreditService(app.db, app.cache, usagePublisher, m, logger, cfg.LedgerTTL)
	paymentService := paymentservice.New(
		logger,
		app.db,
		billing.NewPriceResolver(cfg.PriceProMonthly, cfg.PriceLifetime),
		app.cache,
		grantPublisher,
		m,
		cfg.WebhookTTL,
	)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Auth:     authService,
		Credits:  creditService,
		Payments: paymentService,
		Verifier: paddle.NewVerifier(cfg.WebhookSecret, cfg.SignatureTolerance),
		Limiter:  middlewarectx.NewAccountLimiter(cfg.RateLimit.RPS, cfg.Burst),
		DB:       app.db,
		Cache:    app.cache,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return app, nil
}

// Run запускает HTTP-сервер и блокируется до отмены ctx или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", sl.Err(err))
		}
	}
}
