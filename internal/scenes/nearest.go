package scenes

import (
	"github.com/gurbanow/traffic-map/internal/traffic"
	"github.com/gurbanow/traffic-map/pkg/geo"
)

// NearestIncident finds the incident whose geometry comes closest to the
// center. Every vertex of every incident polyline is measured; incidents
// without geometry fall back to their location point. Ties keep the earlier
// incident.
func NearestIncident(incidents []traffic.Incident, center traffic.Coordinate) (*traffic.Incident, float64, bool) {
	var nearest *traffic.Incident
	nearestDistance := 0.0

	for i := range incidents {
		incident := &incidents[i]

		vertices := incident.Polyline
		if len(vertices) == 0 {
			vertices = []traffic.Coordinate{incident.Location}
		}

		for _, vertex := range vertices {
			distance := geo.HaversineMeters(
				center.Latitude, center.Longitude,
				vertex.Latitude, vertex.Longitude,
			)
			if nearest == nil || distance < nearestDistance {
				nearest = incident
				nearestDistance = distance
			}
		}
	}

	if nearest == nil {
		return nil, 0, false
	}
	return nearest, nearestDistance, true
}
