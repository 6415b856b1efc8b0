package telemetry

// Span and attribute names shared by the services.
const (
	TracerName = "github.com/samirrijal/chicrime"

	SpanHotspotDetect  = "hotspots.detect"
	SpanHotspotDensity = "hotspots.density"
	SpanExperimentRun  = "experiments.run"
	SpanRefresh        = "refresher.tick"

	AttrIncidents    = "chicrime.incidents"
	AttrHotspots     = "chicrime.hotspots"
	AttrCacheHit     = "chicrime.cache_hit"
	AttrSweepParam   = "chicrime.sweep.parameter"
	AttrSweepResults = "chicrime.sweep.results"
)
