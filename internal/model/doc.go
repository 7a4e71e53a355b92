// Package model defines the domain entities and request types for Kathaghar.
//
// Entities:
//
//   - User: a registered account. Hash is never serialized.
//   - Tale: a story record with cultural metadata and a view counter.
//   - AnalyticsEvent: an append-only usage fact with weak references.
//
// Request types carry validator struct tags; Validate methods return the
// failures as []FieldError, which ValidationFailed turns into an error that
// matches ErrValidation:
//
//	if err := model.ValidationFailed(req.Validate()); err != nil {
//	    return nil, err
//	}
//
// RFC 9457 Problem Details for the HTTP layer are defined in errors.go.
package model
