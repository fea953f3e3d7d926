package user

import "errors"

var (
	ErrNotFound    = errors.New("user not found")
	ErrUnavailable = errors.New("user service unavailable")
)
