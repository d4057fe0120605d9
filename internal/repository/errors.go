package repository

import "github.com/pkg/errors"

// ErrNotFound is returned when a user index, summary or transcript does not exist.
var ErrNotFound = errors.New("not found")
