// Package repository persists conversation state. Every backend exposes the
// same Get/Put pair and returns ErrNotFound for conversations it has never
// stored.
package repository

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no state exists for the id.
var ErrNotFound = errors.New("repository: conversation not found")

const (
	// DefaultTTL is how long an idle conversation is kept.
	DefaultTTL = 30 * 24 * time.Hour
	// DefaultMaxHistory bounds the turns loaded back into memory.
	DefaultMaxHistory = 50
)
