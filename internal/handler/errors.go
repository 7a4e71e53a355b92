package handler

import (
	"errors"

	"github.com/kathaghar/api/internal/database"
	"github.com/kathaghar/api/internal/model"
	"github.com/kathaghar/api/internal/service"
)

// MapServiceError converts a service or storage error to a problem response.
// Anything unrecognised becomes a 500 without leaking the cause.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	var verr *model.ValidationError
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return model.NewLoginFailedError()
	case errors.Is(err, service.ErrSessionExpired):
		return model.NewUnauthorizedError("session expired")
	case errors.Is(err, service.ErrInvalidSession):
		return model.NewUnauthorizedError("invalid session token")

	case errors.Is(err, service.ErrEmailAlreadyExists),
		errors.Is(err, database.ErrDuplicate):
		return model.NewConflictError("an account with this email already exists")

	case errors.As(err, &verr):
		return model.NewValidationProblem(verr.Fields)

	case errors.Is(err, database.ErrNotFound):
		return model.NewNotFoundError("record")

	case errors.Is(err, database.ErrConnection):
		return model.NewUnavailableError("storage is unreachable")

	default:
		return model.NewInternalError("")
	}
}

// MapServiceErrorWithContext is MapServiceError with the failed operation
// named in the detail of a 500.
func MapServiceErrorWithContext(err error, operation string) *model.ProblemDetails {
	pd := MapServiceError(err)
	if pd != nil && pd.Status == 500 {
		pd.Detail = operation + ": an unexpected error occurred"
	}
	return pd
}
