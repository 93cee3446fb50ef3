// Package common defines sentinel errors shared by the repositories,
// services and the HTTP layer. Callers should use errors.Is to match them.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorUnauthorized     = errors.New("unauthorized")
	ErrorPermissionDenied = errors.New("permission denied")
	ErrInactiveUser       = errors.New("user account is disabled")

	// Token errors.
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenBlacklisted = errors.New("token is blacklisted")
	ErrWrongTokenType   = errors.New("token has wrong type")

	// Reset/verification link errors.
	ErrInvalidUID = errors.New("invalid uid")
)
