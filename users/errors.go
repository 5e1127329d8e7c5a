package users

import "errors"

var (
	ErrNotFound             = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrEmailNotFound        = errors.New("email not found")
	ErrEmailTaken           = errors.New("email already in use")
	ErrVerificationNotFound = errors.New("verification code not found")
)
