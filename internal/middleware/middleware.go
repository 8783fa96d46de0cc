// Package middleware wraps the ops HTTP endpoint.
package middleware

import (
	"github.com/shelfmail/shelfmail/internal/logger"
)

// Middleware holds the HTTP middleware
type Middleware struct {
	log *logger.Logger
}

// New creates a new Middleware instance
func New(log *logger.Logger) *Middleware {
	return &Middleware{log: log.WithComponent("http")}
}
