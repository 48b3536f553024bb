package storage

import "errors"

// ErrInvalidInput is returned when input validation fails, e.g. an attempt
// to persist an estimated vote-cost row.
var ErrInvalidInput = errors.New("invalid input")
