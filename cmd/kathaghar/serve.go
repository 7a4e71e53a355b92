package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kathaghar/api/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session API server",
		Long: `Serve login, logout, sign-up and session inspection over HTTP, plus
/healthz and /metrics. The database is dialed on first use.`,
		RunE: runServe,
	}
	cmd.Flags().String("server-addr", "", "listen address (default :8080)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a := newApp(cfg)
	defer a.close()

	sessions, err := a.sessions()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	throttle := middleware.NewThrottle(middleware.ThrottleConfig{
		Rate:  cfg.Auth.ThrottleRate,
		Burst: cfg.Auth.ThrottleBurst,
	})
	go throttle.Run(ctx, time.Minute)

	// Warm the connection so the first login does not pay for the dial.
	// A failure here is not fatal; the next request dials again.
	go func() {
		if _, err := a.connect(ctx); err != nil {
			a.logger.Warn("initial database connection failed", slog.String("error", err.Error()))
		}
	}()

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: newRouter(routerDeps{
			Sessions:     sessions,
			Accounts:     a.auth,
			Conn:         a.manager,
			Registry:     a.registry,
			Throttle:     throttle,
			SecureCookie: cfg.Server.SecureCookie,
			Logger:       a.logger,
		}),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", slog.String("addr", cfg.Server.Addr), slog.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("SERVER_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}
