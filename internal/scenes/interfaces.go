package scenes

import (
	"context"

	"github.com/gurbanow/traffic-map/internal/traffic"
	"github.com/gurbanow/traffic-map/pkg/eventbus"
)

// Repository persists scenes
type Repository interface {
	Create(ctx context.Context, scene *Scene) error
	Get(ctx context.Context, id string) (*Scene, error)
	Update(ctx context.Context, scene *Scene) error
	Delete(ctx context.Context, id string) error

	// Event history, kept alongside the scene for debugging and replay
	AppendEvent(ctx context.Context, sceneID, event string) error
	Events(ctx context.Context, sceneID string) ([]string, error)
}

// TrafficProvider is the slice of the traffic service the scene service needs
type TrafficProvider interface {
	QueryIncidents(ctx context.Context, query *traffic.IncidentQuery) (*traffic.IncidentResult, error)
	QueryFlow(ctx context.Context, query *traffic.FlowQuery) (*traffic.FlowResult, error)
}

// Broadcaster pushes scene updates to connected viewers
type Broadcaster interface {
	BroadcastToScene(sceneID, msgType string, data map[string]interface{})
}

// EventPublisher publishes domain events to the bus. May be backed by a noop
// implementation when NATS is disabled.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}
