package token

import "errors"

var (
	// ErrTokenNotFound is returned by repositories when no metadata exists
	// for the presented token string.
	ErrTokenNotFound = errors.New("token not found")

	// ErrInvalidToken is returned when a presented token exists but cannot
	// be used for the requested operation, for example an access token
	// presented for refresh or a token bound to another client.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a token's lifetime has elapsed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked is returned when a token has been revoked.
	ErrTokenRevoked = errors.New("token revoked")
)
