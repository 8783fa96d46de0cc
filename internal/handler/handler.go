// Package handler serves the operational endpoints of the notifier.
package handler

import (
	"context"

	"github.com/shelfmail/shelfmail/internal/logger"
)

// Pinger is a dependency whose liveness can be probed.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds the ops HTTP handlers
type Handler struct {
	deps    map[string]Pinger
	version string
	log     *logger.Logger
}

// New creates a Handler probing the given dependencies by name. Nil entries
// are skipped.
func New(deps map[string]Pinger, version string, log *logger.Logger) *Handler {
	live := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			live[name] = p
		}
	}
	return &Handler{
		deps:    live,
		version: version,
		log:     log.WithComponent("handler"),
	}
}
