package storage

import "errors"

const (
	UniqueViolation = "23505"
)

var (
	ErrTargetExists   = errors.New("This URL is already tracking")
	ErrTargetNotFound = errors.New("target not found")
	ErrAdNotFound     = errors.New("ad not found")
)
