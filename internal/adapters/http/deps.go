package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/chicrime/internal/core/usecases"
)

// Pinger is a dependency whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers. Infrastructure
// fields are optional; leave them nil when the backend is not configured.
type Dependencies struct {
	Crimes      *usecases.CrimeService
	Hotspots    *usecases.HotspotService
	Analysis    *usecases.AnalysisService
	Experiments *usecases.ExperimentService
	NATS        *nats.Conn
	DB          Pinger
	Cache       Pinger
	Version     string
	Logger      *slog.Logger
	// SpecPath locates the OpenAPI document served under /docs.
	SpecPath string
	// LegacySunset is announced on the unversioned /api endpoints.
	LegacySunset time.Time
}
