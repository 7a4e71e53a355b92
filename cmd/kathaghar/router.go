package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kathaghar/api/internal/handler"
	"github.com/kathaghar/api/internal/metrics"
	"github.com/kathaghar/api/internal/middleware"
)

// routerDeps are the pieces the HTTP surface is built from.
type routerDeps struct {
	Sessions     handler.SessionIssuer
	Accounts     handler.AccountRegistrar
	Conn         handler.Connector
	Registry     *prometheus.Registry
	Throttle     *middleware.Throttle
	SecureCookie bool
	Logger       *slog.Logger
}

// newRouter builds the session API:
//
//	GET    /healthz              storage reachability
//	GET    /metrics              Prometheus scrape
//	POST   /api/session          log in (throttled)
//	GET    /api/session          current session (Bearer token or cookie)
//	DELETE /api/session          log out
//	GET    /api/session/pages    sign-in and sign-up redirect targets
//	POST   /api/users            sign up (throttled)
func newRouter(d routerDeps) http.Handler {
	sessions := handler.NewSessionHandler(handler.SessionHandlerConfig{
		Sessions:     d.Sessions,
		Accounts:     d.Accounts,
		SecureCookie: d.SecureCookie,
		Logger:       d.Logger,
	})
	health := handler.NewHealthHandler(d.Conn, 0, d.Logger)

	limited := middleware.Limit(d.Throttle)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Check)
	mux.Handle("GET /metrics", metrics.Handler(d.Registry))

	mux.Handle("POST /api/session", limited(http.HandlerFunc(sessions.Login)))
	mux.Handle("GET /api/session", middleware.Chain(http.HandlerFunc(sessions.Current),
		middleware.Session(d.Sessions),
		middleware.RequireSession,
	))
	mux.HandleFunc("DELETE /api/session", sessions.Logout)
	mux.HandleFunc("GET /api/session/pages", sessions.Pages)
	mux.Handle("POST /api/users", limited(http.HandlerFunc(sessions.Register)))

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(d.Logger),
		middleware.Recovery(d.Logger),
	)
}
