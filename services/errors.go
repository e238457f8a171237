package services

import "errors"

// Sentinel errors returned by the services. Handlers map them to status codes.
var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("already exists")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrStoreFailure    = errors.New("store failure")
	ErrPartialRollback = errors.New("rollback incomplete")
	ErrUnavailable     = errors.New("feature not configured")
)
