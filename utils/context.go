package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout is the default timeout for most database operations
	DefaultTimeout = 10 * time.Second

	// ShortTimeout is for quick operations (cache lookups, etc.)
	ShortTimeout = 2 * time.Second
)

// WithTimeout creates a context with default timeout
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

// WithShortTimeout creates a context with short timeout for quick operations
func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}

// Detached keeps the values of parent (trace spans, ids) but drops its
// cancellation, for work that outlives the request that started it.
func Detached(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}
