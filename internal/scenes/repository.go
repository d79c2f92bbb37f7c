package scenes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gurbanow/traffic-map/pkg/common"
	redisclient "github.com/gurbanow/traffic-map/pkg/redis"
)

const (
	sceneKeyPrefix  = "scenes:scene:"
	eventsKeySuffix = ":events"

	// Event history is capped per scene; older entries are dropped by TTL
	maxEventHistory = 200
)

// RedisRepository stores scenes as JSON documents with a sliding TTL
type RedisRepository struct {
	redis redisclient.ClientInterface
	ttl   time.Duration
}

// NewRedisRepository creates a scene repository backed by Redis
func NewRedisRepository(redis redisclient.ClientInterface, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisRepository{redis: redis, ttl: ttl}
}

func sceneKey(id string) string {
	return sceneKeyPrefix + id
}

func eventsKey(id string) string {
	return sceneKeyPrefix + id + eventsKeySuffix
}

// Create stores a new scene
func (r *RedisRepository) Create(ctx context.Context, scene *Scene) error {
	data, err := json.Marshal(scene)
	if err != nil {
		return fmt.Errorf("marshal scene: %w", err)
	}

	if err := r.redis.SetWithExpiration(ctx, sceneKey(scene.ID), string(data), r.ttl); err != nil {
		return fmt.Errorf("store scene: %w", err)
	}
	return nil
}

// Get loads a scene by ID
func (r *RedisRepository) Get(ctx context.Context, id string) (*Scene, error) {
	data, err := r.redis.GetString(ctx, sceneKey(id))
	if err != nil {
		return nil, common.NewNotFoundError("scene not found", err)
	}

	var scene Scene
	if err := json.Unmarshal([]byte(data), &scene); err != nil {
		return nil, fmt.Errorf("unmarshal scene: %w", err)
	}

	if scene.Overlays == nil {
		scene.Overlays = make(map[string]Overlay)
	}

	return &scene, nil
}

// Update stores the scene and refreshes its TTL
func (r *RedisRepository) Update(ctx context.Context, scene *Scene) error {
	scene.UpdatedAt = time.Now()

	data, err := json.Marshal(scene)
	if err != nil {
		return fmt.Errorf("marshal scene: %w", err)
	}

	if err := r.redis.SetWithExpiration(ctx, sceneKey(scene.ID), string(data), r.ttl); err != nil {
		return fmt.Errorf("update scene: %w", err)
	}

	// Keep the event history alive as long as the scene
	_ = r.redis.Expire(ctx, eventsKey(scene.ID), r.ttl)

	return nil
}

// Delete removes a scene and its event history
func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	return r.redis.Delete(ctx, sceneKey(id), eventsKey(id))
}

// AppendEvent records a mutation in the scene's event history
func (r *RedisRepository) AppendEvent(ctx context.Context, sceneID, event string) error {
	entry := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), event)
	if err := r.redis.RPush(ctx, eventsKey(sceneID), entry); err != nil {
		return fmt.Errorf("append scene event: %w", err)
	}
	return r.redis.Expire(ctx, eventsKey(sceneID), r.ttl)
}

// Events returns the most recent scene events, oldest first
func (r *RedisRepository) Events(ctx context.Context, sceneID string) ([]string, error) {
	return r.redis.LRange(ctx, eventsKey(sceneID), -maxEventHistory, -1)
}
