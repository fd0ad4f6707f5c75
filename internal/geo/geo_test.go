package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   Point
		expect float64
		delta  float64
	}{
		{
			name:   "same point",
			a:      Point{Latitude: 14.68, Longitude: 120.54},
			b:      Point{Latitude: 14.68, Longitude: 120.54},
			expect: 0,
			delta:  1e-9,
		},
		{
			name:   "one degree along a meridian",
			a:      Point{Latitude: 0, Longitude: 0},
			b:      Point{Latitude: 1, Longitude: 0},
			expect: EarthRadiusKm * math.Pi / 180,
			delta:  1e-6,
		},
		{
			name:   "balanga to manila",
			a:      Point{Latitude: 14.6760, Longitude: 120.5364},
			b:      Point{Latitude: 14.5995, Longitude: 120.9842},
			expect: 48.9,
			delta:  0.5,
		},
		{
			name:   "antipodal",
			a:      Point{Latitude: 0, Longitude: 0},
			b:      Point{Latitude: 0, Longitude: 180},
			expect: EarthRadiusKm * math.Pi,
			delta:  1e-6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := DistanceKm(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.expect, d, tt.delta)

			reverse, err := DistanceKm(tt.b, tt.a)
			require.NoError(t, err)
			assert.InDelta(t, d, reverse, 1e-9)
		})
	}
}

func TestDistanceKmRejectsInvalidCoordinates(t *testing.T) {
	t.Parallel()

	valid := Point{Latitude: 14.68, Longitude: 120.54}
	invalid := []Point{
		{Latitude: math.NaN(), Longitude: 120},
		{Latitude: 14, Longitude: math.NaN()},
		{Latitude: 91, Longitude: 0},
		{Latitude: 0, Longitude: -180.5},
		{Latitude: math.Inf(1), Longitude: 0},
	}

	for _, p := range invalid {
		_, err := DistanceKm(valid, p)
		assert.ErrorIs(t, err, ErrInvalidCoordinate, "point %+v", p)

		_, err = DistanceKm(p, valid)
		assert.ErrorIs(t, err, ErrInvalidCoordinate, "point %+v", p)
	}
}

func TestWithinRadiusBoundaryIsInclusive(t *testing.T) {
	t.Parallel()

	origin := Point{Latitude: 14.68, Longitude: 120.54}
	point := Point{Latitude: 14.70, Longitude: 120.60}

	d, err := DistanceKm(origin, point)
	require.NoError(t, err)

	ok, err := WithinRadius(origin, point, d)
	require.NoError(t, err)
	assert.True(t, ok, "point at exactly the radius must be inside")

	// Shrinking the radius by epsilon puts the point at radius+epsilon.
	ok, err = WithinRadius(origin, point, d-1e-6)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = WithinRadius(origin, Point{Latitude: math.NaN()}, 10)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}
