package services

import "errors"

// Service errors the HTTP layer maps to status codes.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicate          = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("not found")
)
