package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/kathaghar/api/internal/config"
	"github.com/kathaghar/api/internal/database"
	"github.com/kathaghar/api/internal/logging"
	"github.com/kathaghar/api/internal/metrics"
	"github.com/kathaghar/api/internal/repository"
	"github.com/kathaghar/api/internal/service"
	"github.com/kathaghar/api/pkg/jwt"
)

const serviceName = "kathaghar"

// app is the wired data layer shared by the subcommands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	manager   *database.Manager
	users     *repository.UserRepository
	tales     *repository.TaleRepository
	analytics *repository.AnalyticsRepository
	auth      *service.AuthService
}

// loadConfig reads configuration for cmd, honouring --config and any
// overriding flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.Options{File: configFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "load configuration").Wrap(err)
	}
	return cfg, nil
}

// newApp wires storage and services. Nothing dials until first use.
func newApp(cfg *config.Config) *app {
	logger := logging.Setup(cfg.Logging(serviceName, version))
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(registry)

	opts := []database.ManagerOption{
		database.WithDialTimeout(cfg.Database.DialTimeout),
		database.WithMetrics(mt),
		database.WithLogger(logger),
	}
	if cfg.Database.DialRetries > 0 {
		opts = append(opts, database.WithRetry(
			retry.WithMaxRetries(cfg.Database.DialRetries, retry.NewExponential(250*time.Millisecond)),
		))
	}
	manager := database.NewManager(database.Dial(cfg.DB()), opts...)

	users := repository.NewUserRepository(manager)
	analytics := repository.NewAnalyticsRepository(manager)
	tales := repository.NewTaleRepository(manager, analytics, mt)

	auth := service.NewAuthService(service.AuthServiceConfig{
		Users:   users,
		Hasher:  service.NewBcryptHasher(cfg.Auth.BcryptCost),
		Metrics: mt,
		Logger:  logger,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		metrics:   mt,
		manager:   manager,
		users:     users,
		tales:     tales,
		analytics: analytics,
		auth:      auth,
	}
}

// sessions builds the session service. It needs the signing key, so only
// commands that issue or read tokens call it.
func (a *app) sessions() (*service.SessionService, error) {
	signer, err := jwt.NewService(a.cfg.Token())
	if err != nil {
		return nil, oops.Code("KEYS_UNAVAILABLE").
			With("private_key", a.cfg.JWT.PrivateKeyPath).
			Hint("generate keys with: kathaghar keygen").
			Wrap(err)
	}
	return service.NewSessionService(service.SessionServiceConfig{
		Auth:   a.auth,
		Tokens: signer,
		Pages:  a.cfg.Pages(),
	}), nil
}

// connect dials storage, wrapping failure in a coded error.
func (a *app) connect(ctx context.Context) (database.Database, error) {
	db, err := a.manager.Connect(ctx)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "connect to database").
			With("url", a.cfg.Database.URL).
			Wrap(err)
	}
	return db, nil
}

func (a *app) close() {
	if err := a.manager.Close(); err != nil {
		a.logger.Warn("closing database connection", slog.String("error", err.Error()))
	}
}
