package oauth2

import "errors"

var (
	ErrGrantNotFound       = errors.New("authorization grant not found")
	ErrGrantNotFulfilled   = errors.New("authorization grant not fulfilled")
	ErrGrantFulfilled      = errors.New("authorization grant already fulfilled")
	ErrCodeExchanged       = errors.New("authorization code already exchanged")
	ErrMissingClientID     = errors.New("client_id is required")
	ErrInvalidRedirectURI  = errors.New("invalid or unregistered redirect_uri")
	ErrInvalidResponseMode = errors.New("invalid response mode")
	ErrInvalidResponseType = errors.New("unsupported response type")
	ErrInvalidScope        = errors.New("scope contains invalid characters")
)
