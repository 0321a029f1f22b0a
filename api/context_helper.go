package api

import (
	"context"
	"time"
)

// QueryTimeout bounds the store calls of one admin request. main sets it
// from QUERY_TIMEOUT.
var QueryTimeout = 10 * time.Second

// WithQueryTimeout creates a context with query timeout
func WithQueryTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, QueryTimeout)
}
