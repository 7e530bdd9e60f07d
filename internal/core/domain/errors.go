package domain

import "errors"

var (
	ErrUnknownRole         = errors.New("unknown role")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionInvalid      = errors.New("session invalid")
	ErrSessionExpired      = errors.New("session expired")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrLoginPending        = errors.New("login already in progress")
	ErrUserNotFound        = errors.New("user not found")
	ErrResponseTooLarge    = errors.New("upstream response too large")
)
