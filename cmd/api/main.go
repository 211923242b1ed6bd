package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/guardian-api/internal/config"
	"github.com/guardian-api/internal/infrastructure/dynamo"
	"github.com/guardian-api/internal/infrastructure/google"
	jwtinfra "github.com/guardian-api/internal/infrastructure/jwt"
	"github.com/guardian-api/internal/infrastructure/memory"
	"github.com/guardian-api/internal/infrastructure/smtp"
	"github.com/guardian-api/internal/infrastructure/sns"
	"github.com/guardian-api/internal/metrics"
	transporthttp "github.com/guardian-api/internal/transport/http"
	"github.com/guardian-api/internal/transport/http/handler"
	appmiddleware "github.com/guardian-api/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, err := newRepositories(ctx, cfg)
	if err != nil {
		return err
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	// Identity events are optional; without a topic nothing is published.
	var events transporthttp.EventPublisher
	if cfg.SNSTopicARN != "" {
		awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg, cfg.SNSRegion)
		if err != nil {
			return err
		}
		events = sns.NewPublisher(sns.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.SNSTopicARN)
	} else {
		logger.Warn("SNS_TOPIC_ARN not set, identity events are disabled")
	}

	verifiers := map[string]handler.PlatformVerifier{}
	if cfg.GoogleClientID != "" {
		verifiers[google.Platform] = google.NewVerifier(cfg.GoogleClientID)
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set, google sign-in is disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 5 requests/second, burst of 10, per client IP.
	limiter := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	defer limiter.Stop()

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Repos:          repos,
		Mailer:         smtp.NewMailer(cfg),
		JWTProvider:    jwtProvider,
		Events:         events,
		Verifiers:      verifiers,
		Metrics:        metrics.NewCollector(reg),
		MetricsHandler: metrics.Handler(reg),
		RateLimiter:    limiter,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "storage", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func newRepositories(ctx context.Context, cfg *config.Config) (transporthttp.Repositories, error) {
	if cfg.StorageDriver == "memory" {
		store := memory.NewStore(nil)
		return transporthttp.Repositories{
			Identities:    store.Identities,
			Accounts:      store.Accounts,
			Integrations:  store.Integrations,
			RecoveryCodes: store.RecoveryCodes,
			Tokens:        store.Tokens,
			Clients:       store.Clients,
		}, nil
	}

	client, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return transporthttp.Repositories{}, err
	}
	// Creates the tables if they don't exist.
	dynamo.Bootstrap(ctx, client, cfg.DynamoTables)

	t := cfg.DynamoTables
	return transporthttp.Repositories{
		Identities:    dynamo.NewIdentityRepo(client, t.Identities),
		Accounts:      dynamo.NewAccountRepo(client, t.Accounts, t.AccountEmails),
		Integrations:  dynamo.NewIntegrationRepo(client, t.Integrations),
		RecoveryCodes: dynamo.NewRecoveryCodeRepo(client, t.RecoveryCodes),
		Tokens:        dynamo.NewTokenRepo(client, t.Tokens),
		Clients:       dynamo.NewClientRepo(client, t.Clients),
	}, nil
}
