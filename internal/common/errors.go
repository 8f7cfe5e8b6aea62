// Package common defines shared constants and sentinel errors used across
// the schema engine, repositories and services. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound          = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")

	// Schema migration errors.
	ErrRevisionNotFound   = errors.New("revision not found")
	ErrAmbiguousChain     = errors.New("ambiguous revision chain")
	ErrNoHistory          = errors.New("no revision history")
	ErrTransactionFailure = errors.New("transaction failure")

	// Sync state errors.
	ErrInvalidSyncState = errors.New("invalid sync state")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmailExists    = errors.New("email already registered")
	ErrWebNameTaken   = errors.New("web name taken")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
