package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/chicrime/internal/pkg/metrics"
)

const (
	defaultTimeout = 15 * time.Second
	// Detection and sweeps evaluate full grids; give them longer.
	heavyTimeout = 30 * time.Second
	sweepTimeout = 2 * time.Minute
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware(deps.Logger))
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/crimes", timeout.NewWithContext(ListCrimesHandler(deps), defaultTimeout))
	v1.Get("/crimes/types", timeout.NewWithContext(CrimeTypesHandler(deps), defaultTimeout))
	v1.Get("/stats/monthly", timeout.NewWithContext(MonthlyStatsHandler(deps), defaultTimeout))
	v1.Get("/stats/grid-hotspots", timeout.NewWithContext(GridHotspotsHandler(deps), defaultTimeout))

	v1.Get("/hotspots", timeout.NewWithContext(HotspotsHandler(deps), heavyTimeout))
	v1.Get("/hotspots/density", timeout.NewWithContext(HotspotDensityHandler(deps), heavyTimeout))
	v1.Get("/hotspots/heatmap.png", timeout.NewWithContext(HotspotHeatmapHandler(deps), heavyTimeout))

	v1.Get("/analysis/trends", timeout.NewWithContext(TrendsHandler(deps), defaultTimeout))
	v1.Get("/analysis/monthly", timeout.NewWithContext(MonthlyPatternsHandler(deps), defaultTimeout))
	v1.Get("/forecast", timeout.NewWithContext(ForecastHandler(deps), defaultTimeout))

	v1.Get("/experiments", timeout.NewWithContext(ListExperimentsHandler(deps), defaultTimeout))
	v1.Post("/experiments", timeout.NewWithContext(RunExperimentHandler(deps), sweepTimeout))
	v1.Get("/experiments/:id", timeout.NewWithContext(GetExperimentHandler(deps), defaultTimeout))
	v1.Get("/experiments/:id/chart", timeout.NewWithContext(ExperimentChartHandler(deps), defaultTimeout))

	// Unversioned endpoints of the original dashboard.
	sunset := deps.LegacySunset
	if sunset.IsZero() {
		sunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)
	}
	legacy := app.Group("/api", DeprecationMiddleware(LegacyRoutes(sunset)), LegacyEnvelope())
	legacy.Get("/health", HealthHandler(deps))
	legacy.Get("/crimes/all", timeout.NewWithContext(ListCrimesHandler(deps), defaultTimeout))
	legacy.Get("/crimes/types", timeout.NewWithContext(CrimeTypesHandler(deps), defaultTimeout))
	legacy.Get("/stats/monthly", timeout.NewWithContext(MonthlyStatsHandler(deps), defaultTimeout))
	legacy.Get("/crimes/hotspots", timeout.NewWithContext(GridHotspotsHandler(deps), defaultTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, deps.SpecPath)

	// WebSocket relay needs NATS.
	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS, deps.Logger)))
	}
}
