package hotspot

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chicagoIncidents(seed int64) PointSet {
	loop := Point{Lat: 41.88, Lon: -87.63}
	var ps PointSet
	for _, p := range clusteredPoints(400, loop, 0.004, seed) {
		ps = append(ps, Incident{Location: p, Category: "THEFT"})
	}
	rng := rand.New(rand.NewSource(seed + 1))
	for i := 0; i < 100; i++ {
		ps = append(ps, Incident{
			Location: Point{
				Lat: ChicagoBounds.LatMin + rng.Float64()*(ChicagoBounds.LatMax-ChicagoBounds.LatMin),
				Lon: ChicagoBounds.LonMin + rng.Float64()*(ChicagoBounds.LonMax-ChicagoBounds.LonMin),
			},
			Category: "OTHER",
		})
	}
	return ps
}

func TestDetect_FindsDowntownCluster(t *testing.T) {
	stages := map[string]int{}
	cfg := DefaultConfig()
	cfg.ThresholdPercentile = 98

	res, err := Detect(context.Background(), chicagoIncidents(5), cfg, Options{
		Observer: func(stage string, _ time.Duration) { stages[stage]++ },
	})
	require.NoError(t, err)

	assert.Equal(t, cfg.GridResolution*cfg.GridResolution, res.Grid.Len())
	assert.Len(t, res.Scores, res.Grid.Len())
	require.NotEmpty(t, res.Hotspots())

	top := res.Hotspots()[0]
	for _, h := range res.Hotspots() {
		if h.DensityScore > top.DensityScore {
			top = h
		}
	}
	dist := math.Hypot(top.Centroid.Lat-41.88, top.Centroid.Lon+87.63)
	assert.Less(t, dist, 0.02)
	assert.Equal(t, map[string]int{"fit": 1, "sample": 1, "score": 1, "extract": 1}, stages)
}

func TestDetect_EmptyIncidents(t *testing.T) {
	res, err := Detect(context.Background(), nil, DefaultConfig(), Options{})
	assert.Nil(t, res)
	var ie *InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "fit", ie.Stage)
}

func TestDetect_NegativeEpsIsInputError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClusterEps = -1
	_, err := Detect(context.Background(), chicagoIncidents(1), cfg, Options{})
	assert.True(t, IsInputError(err))
}

func TestDetect_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Detect(ctx, chicagoIncidents(1), DefaultConfig(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_AutoEpsFollowsGridSpacing(t *testing.T) {
	cfg := DefaultConfig()
	g, err := Sample(cfg.Bounds, cfg.GridResolution)
	require.NoError(t, err)

	latStep, lonStep := g.Spacing()
	ec := cfg.Extract(g)
	assert.InDelta(t, 1.5*math.Max(latStep, lonStep), ec.ClusterEps, 1e-12)

	cfg.ClusterEps = 0.02
	assert.Equal(t, 0.02, cfg.Extract(g).ClusterEps)
}
