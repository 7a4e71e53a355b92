// Package handler serves the small HTTP surface around the data layer:
// session login and inspection, sign-up, and a health check.
//
// Responses use WriteData for success and RFC 9457 problem details for
// errors; MapServiceError is the single place service and storage errors
// become HTTP statuses.
//
//	sessions := handler.NewSessionHandler(handler.SessionHandlerConfig{
//	    Sessions: sessionService,
//	    Accounts: authService,
//	})
//	mux.HandleFunc("POST /api/session", sessions.Login)
//	mux.HandleFunc("GET /api/session", sessions.Current)
package handler
