package geospatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	assert.Zero(t, Haversine(41.88, -87.63, 41.88, -87.63))

	// One degree of latitude is about 111.2 km on the haversine sphere.
	d := Haversine(41.0, -87.6, 42.0, -87.6)
	assert.InDelta(t, 111195, d, 50)

	assert.InDelta(t, d, Haversine(42.0, -87.6, 41.0, -87.6), 1e-9, "symmetric")
}

func TestSquareDegreesToSqKm(t *testing.T) {
	assert.InDelta(t, 12392.1424, SquareDegreesToSqKm(1), 1e-4)
	assert.Zero(t, SquareDegreesToSqKm(0))
}
