package clients

import "errors"

var (
	ErrNotFound           = errors.New("client not found")
	ErrInvalidScope       = errors.New("scope not allowed for client")
	ErrInvalidRedirectURI = errors.New("invalid redirect uri")
	ErrNoRedirectURIs     = errors.New("at least one redirect uri is required")
	ErrInvalidAuthMethod  = errors.New("unsupported token endpoint auth method")
)
