package session

import "errors"

var (
	ErrNotFound = errors.New("session not found")
	ErrDone     = errors.New("unit of work already terminated")
)
