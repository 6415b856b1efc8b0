package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DeprecatedRoute marks an endpoint as deprecated with sunset date.
type DeprecatedRoute struct {
	Path        string    // exact path or pattern with :param segments
	SunsetDate  time.Time // date the endpoint is removed
	Alternative string    // successor endpoint, optional
}

// LegacyRoutes lists the unversioned endpoints kept for the original
// dashboard, each with its /v1 successor.
func LegacyRoutes(sunset time.Time) []DeprecatedRoute {
	return []DeprecatedRoute{
		{Path: "/api/health", SunsetDate: sunset, Alternative: "/v1/health"},
		{Path: "/api/crimes/all", SunsetDate: sunset, Alternative: "/v1/crimes"},
		{Path: "/api/crimes/types", SunsetDate: sunset, Alternative: "/v1/crimes/types"},
		{Path: "/api/stats/monthly", SunsetDate: sunset, Alternative: "/v1/stats/monthly"},
		{Path: "/api/crimes/hotspots", SunsetDate: sunset, Alternative: "/v1/stats/grid-hotspots"},
	}
}

// DeprecationMiddleware adds Deprecation, Sunset, Link and Warning headers
// to deprecated endpoints.
func DeprecationMiddleware(deprecated []DeprecatedRoute) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, d := range deprecated {
			if !matchPattern(c.Path(), d.Path) {
				continue
			}
			c.Set("Deprecation", "true")
			c.Set("Sunset", d.SunsetDate.UTC().Format(time.RFC1123))
			if d.Alternative != "" {
				c.Set(fiber.HeaderLink, fmt.Sprintf(`<%s>; rel="successor-version"`, d.Alternative))
			}
			days := time.Until(d.SunsetDate).Hours() / 24
			c.Set(fiber.HeaderWarning, fmt.Sprintf(`299 - "Deprecated API, will sunset in %.0f days"`, days))
			break
		}
		return c.Next()
	}
}

// matchPattern reports whether path matches pattern segment by segment,
// where a ":name" segment matches any non-empty value.
func matchPattern(path, pattern string) bool {
	if path == pattern {
		return true
	}
	ps := strings.Split(strings.Trim(path, "/"), "/")
	qs := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(ps) != len(qs) {
		return false
	}
	for i, q := range qs {
		if strings.HasPrefix(q, ":") {
			if ps[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != q {
			return false
		}
	}
	return true
}
