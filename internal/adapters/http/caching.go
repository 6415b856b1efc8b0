package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets a default Cache-Control on GET responses that did
// not set their own. Lifetimes follow how often the underlying data changes:
// incidents arrive in daily batches, detection runs are cached server-side
// for minutes, experiment runs never change once stored.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Get(fiber.HeaderCacheControl) != "" {
			return err
		}
		if cc := cacheControlFor(c.Path(), c.Query("refresh") != ""); cc != "" {
			c.Set(fiber.HeaderCacheControl, cc)
		}
		return err
	}
}

func cacheControlFor(path string, refresh bool) string {
	switch {
	case path == "/metrics" || refresh:
		return "no-cache"
	case path == "/v1/health" || path == "/v1/ready" || path == "/api/health":
		return "public, max-age=10"
	case strings.HasPrefix(path, "/v1/experiments/"):
		return "public, max-age=86400"
	case path == "/v1/experiments":
		return "public, max-age=30"
	case strings.HasPrefix(path, "/v1/hotspots"), strings.HasPrefix(path, "/api/crimes/hotspots"):
		return "public, max-age=600"
	case strings.HasPrefix(path, "/v1/analysis"), path == "/v1/forecast", strings.HasPrefix(path, "/v1/stats"), strings.HasPrefix(path, "/api/stats"):
		return "public, max-age=600"
	case strings.HasPrefix(path, "/v1/crimes/types"), path == "/api/crimes/types":
		return "public, max-age=3600"
	case strings.HasPrefix(path, "/v1/"), strings.HasPrefix(path, "/api/"):
		return "public, max-age=300"
	}
	return ""
}
