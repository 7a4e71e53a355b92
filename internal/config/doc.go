// Package config loads and validates configuration.
//
// Values come from, in increasing precedence: built-in defaults, an
// optional YAML file, KATHAGHAR_* environment variables (a .env file in the
// working directory is loaded first), and command-line flags the user set.
// The first underscore after the prefix separates the section:
//
//	KATHAGHAR_DATABASE_URL          database.url (required)
//	KATHAGHAR_DATABASE_NAMESPACE    database.namespace (kathaghar)
//	KATHAGHAR_DATABASE_NAME         database.name (main)
//	KATHAGHAR_JWT_EXPIRATION_MINS   jwt.expiration_mins (43200, 30 days)
//	KATHAGHAR_AUTH_SIGNIN_PAGE      auth.signin_page (/login)
//	KATHAGHAR_AUTH_SIGNUP_PAGE      auth.signup_page (/register)
//	KATHAGHAR_LOG_FORMAT            log.format (json)
//
// Load fails when a required value is missing, naming each offending
// variable.
package config
