// Package service holds the authentication flow and supporting workflows
// built on the repositories.
//
// AuthService verifies credentials and registers accounts. Authorize
// reports every failure as ErrInvalidCredentials so callers cannot tell an
// unknown email from a wrong password; the real cause is logged with an
// oops code and counted in the auth_attempts metric.
//
// SessionService folds an authorized identity into a signed token and
// projects verified token claims back onto a model.Session. Sessions are
// stateless.
//
// SeederService fills a development database with demo accounts and tales.
//
// Services declare the repository interfaces they consume so tests can
// substitute hand-written mocks.
package service
