package scenes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurbanow/traffic-map/internal/traffic"
)

func TestNearestIncident_PicksClosestVertex(t *testing.T) {
	// Arrange - the second incident's middle vertex is closest to the center
	center := traffic.Coordinate{Latitude: 37.7749, Longitude: -122.4194}
	incidents := []traffic.Incident{
		{
			ID:          "far",
			Description: "Construction on Market St",
			Polyline: []traffic.Coordinate{
				{Latitude: 37.80, Longitude: -122.40},
				{Latitude: 37.81, Longitude: -122.41},
			},
		},
		{
			ID:          "near",
			Description: "Accident on Mission St",
			Polyline: []traffic.Coordinate{
				{Latitude: 37.79, Longitude: -122.43},
				{Latitude: 37.7750, Longitude: -122.4195},
				{Latitude: 37.76, Longitude: -122.40},
			},
		},
	}

	// Act
	nearest, distance, found := NearestIncident(incidents, center)

	// Assert
	require.True(t, found)
	assert.Equal(t, "near", nearest.ID)
	assert.Less(t, distance, 100.0)
}

func TestNearestIncident_TieKeepsEarlierIncident(t *testing.T) {
	// Arrange - both incidents have a vertex at the exact same spot
	center := traffic.Coordinate{Latitude: 37.7749, Longitude: -122.4194}
	shared := traffic.Coordinate{Latitude: 37.78, Longitude: -122.42}
	incidents := []traffic.Incident{
		{ID: "first", Polyline: []traffic.Coordinate{shared}},
		{ID: "second", Polyline: []traffic.Coordinate{shared}},
	}

	// Act
	nearest, _, found := NearestIncident(incidents, center)

	// Assert - the strict comparison keeps the first incident on a tie
	require.True(t, found)
	assert.Equal(t, "first", nearest.ID)
}

func TestNearestIncident_EmptyList(t *testing.T) {
	center := traffic.Coordinate{Latitude: 37.7749, Longitude: -122.4194}

	nearest, distance, found := NearestIncident(nil, center)

	assert.False(t, found)
	assert.Nil(t, nearest)
	assert.Zero(t, distance)
}

func TestNearestIncident_LocationFallback(t *testing.T) {
	// Arrange - an incident without geometry is measured at its location point
	center := traffic.Coordinate{Latitude: 37.7749, Longitude: -122.4194}
	incidents := []traffic.Incident{
		{
			ID:       "point-only",
			Location: traffic.Coordinate{Latitude: 37.7749, Longitude: -122.4194},
		},
		{
			ID: "with-geometry",
			Polyline: []traffic.Coordinate{
				{Latitude: 37.80, Longitude: -122.40},
			},
		},
	}

	// Act
	nearest, distance, found := NearestIncident(incidents, center)

	// Assert
	require.True(t, found)
	assert.Equal(t, "point-only", nearest.ID)
	assert.Zero(t, distance)
}

func TestNearestIncident_EveryVertexConsidered(t *testing.T) {
	// Arrange - the closest vertex is the last one of a long polyline, so a
	// first-vertex-only comparison would pick the wrong incident
	center := traffic.Coordinate{Latitude: 37.7749, Longitude: -122.4194}
	incidents := []traffic.Incident{
		{
			ID: "close-start",
			Polyline: []traffic.Coordinate{
				{Latitude: 37.78, Longitude: -122.42},
				{Latitude: 37.90, Longitude: -122.50},
			},
		},
		{
			ID: "close-end",
			Polyline: []traffic.Coordinate{
				{Latitude: 37.95, Longitude: -122.55},
				{Latitude: 37.90, Longitude: -122.50},
				{Latitude: 37.7749, Longitude: -122.4195},
			},
		},
	}

	// Act
	nearest, _, found := NearestIncident(incidents, center)

	// Assert
	require.True(t, found)
	assert.Equal(t, "close-end", nearest.ID)
}
