package hotspot

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit_EmptyPoints(t *testing.T) {
	m, err := Fit(nil, 0.01)
	require.Error(t, err)
	assert.Nil(t, m)
	assert.True(t, IsInputError(err))

	var ie *InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "fit", ie.Stage)
}

func TestFit_RejectsBadBandwidth(t *testing.T) {
	pts := []Point{{Lat: 41.88, Lon: -87.63}}
	for _, bw := range []float64{0, -0.01, math.NaN(), math.Inf(1)} {
		_, err := Fit(pts, bw)
		assert.True(t, IsInputError(err), "bandwidth %v", bw)
	}
}

func TestFit_RejectsUnrepresentableBandwidth(t *testing.T) {
	pts := []Point{{Lat: 41.88, Lon: -87.63}}
	for _, bw := range []float64{1e-155, 1e-160, 1e-170, 1e155, 1e200} {
		_, err := Fit(pts, bw)
		assert.True(t, IsInputError(err), "bandwidth %v", bw)
	}
}

func TestFit_TinyBandwidthStaysFinite(t *testing.T) {
	pts := []Point{{Lat: 41.88, Lon: -87.63}, {Lat: 41.89, Lon: -87.62}}
	m, err := Fit(pts, 1e-150)
	require.NoError(t, err)

	for i, s := range m.Score(append(pts, Point{Lat: 41.5, Lon: -87.5})) {
		assert.False(t, math.IsNaN(s) || math.IsInf(s, 0), "score %d is %v", i, s)
		assert.GreaterOrEqual(t, s, 0.0, "score %d", i)
	}
}

func TestFit_RejectsNonFiniteCoordinates(t *testing.T) {
	_, err := Fit([]Point{{Lat: math.NaN(), Lon: -87.6}}, 0.01)
	assert.True(t, IsInputError(err))
}

func TestFit_CopiesSamples(t *testing.T) {
	pts := []Point{{Lat: 41.88, Lon: -87.63}}
	m, err := Fit(pts, 0.01)
	require.NoError(t, err)

	before := m.Score(pts)[0]
	pts[0] = Point{Lat: 0, Lon: 0}
	after := m.Score([]Point{{Lat: 41.88, Lon: -87.63}})[0]
	assert.Equal(t, before, after)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 0.01, m.Bandwidth())
}

func TestScore_SinglePointPeak(t *testing.T) {
	h := 0.01
	p := Point{Lat: 41.88, Lon: -87.63}
	m, err := Fit([]Point{p}, h)
	require.NoError(t, err)

	got := m.Score([]Point{p})[0]
	want := 1 / (2 * math.Pi * h * h)
	assert.InDelta(t, want, got, want*1e-9)
}

func TestScore_MatchesDirectSum(t *testing.T) {
	h := 0.02
	samples := []Point{
		{Lat: 41.80, Lon: -87.70},
		{Lat: 41.82, Lon: -87.66},
		{Lat: 41.85, Lon: -87.65},
		{Lat: 41.90, Lon: -87.61},
	}
	m, err := Fit(samples, h)
	require.NoError(t, err)

	queries := []Point{{Lat: 41.83, Lon: -87.67}, {Lat: 41.95, Lon: -87.55}}
	got := m.Score(queries)
	require.Len(t, got, len(queries))

	for i, q := range queries {
		var sum float64
		for _, s := range samples {
			d2 := (q.Lat-s.Lat)*(q.Lat-s.Lat) + (q.Lon-s.Lon)*(q.Lon-s.Lon)
			sum += math.Exp(-d2/(2*h*h)) / (2 * math.Pi * h * h)
		}
		want := sum / float64(len(samples))
		assert.InDelta(t, want, got[i], want*1e-9+1e-300)
	}
}

func TestScore_NonNegativeOnSamples(t *testing.T) {
	pts := clusteredPoints(200, Point{Lat: 41.88, Lon: -87.63}, 0.004, 7)
	m, err := Fit(pts, 0.005)
	require.NoError(t, err)

	for i, s := range m.Score(pts) {
		assert.GreaterOrEqual(t, s, 0.0, "score %d", i)
		assert.False(t, math.IsNaN(s) || math.IsInf(s, 0), "score %d", i)
	}
}

func TestScore_FarQueryUnderflowsToZero(t *testing.T) {
	m, err := Fit([]Point{{Lat: 41.88, Lon: -87.63}}, 0.001)
	require.NoError(t, err)

	got := m.Score([]Point{{Lat: 0, Lon: 0}})
	assert.Equal(t, 0.0, got[0])
}

// cancelAfter reports Canceled once Err has been called n times.
type cancelAfter struct {
	context.Context
	n int
}

func (c *cancelAfter) Err() error {
	if c.n <= 0 {
		return context.Canceled
	}
	c.n--
	return nil
}

func TestScoreContext_StopsWhenCanceled(t *testing.T) {
	m, err := Fit(clusteredPoints(50, Point{Lat: 41.88, Lon: -87.63}, 0.01, 3), 0.01)
	require.NoError(t, err)
	g, err := Sample(ChicagoBounds, 60)
	require.NoError(t, err)

	// The first chunk is scored, the second check sees the cancellation.
	ctx := &cancelAfter{Context: context.Background(), n: 1}
	scores, err := m.ScoreContext(ctx, g.Points)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, scores)

	scores, err = m.ScoreContext(context.Background(), g.Points)
	require.NoError(t, err)
	assert.Equal(t, m.Score(g.Points), scores)
}
