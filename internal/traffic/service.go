package traffic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gurbanow/traffic-map/pkg/geo"
	"github.com/gurbanow/traffic-map/pkg/logger"
	redisclient "github.com/gurbanow/traffic-map/pkg/redis"
	"github.com/gurbanow/traffic-map/pkg/resilience"
)

// Service provides traffic data with caching, fallbacks, and circuit breakers.
// Construction fails when no engine can be built; callers treat that as fatal.
type Service struct {
	primary   Engine
	fallbacks []Engine
	redis     redisclient.ClientInterface
	config    Config
	breakers  map[Provider]*resilience.CircuitBreaker
}

// NewService creates a new traffic service
func NewService(config Config, redis redisclient.ClientInterface) (*Service, error) {
	s := &Service{
		redis:    redis,
		config:   config,
		breakers: make(map[Provider]*resilience.CircuitBreaker),
	}

	primary, err := s.createEngine(config.Primary)
	if err != nil {
		return nil, fmt.Errorf("failed to create primary engine: %w", err)
	}
	s.primary = primary

	for _, fc := range config.Fallbacks {
		fallback, err := s.createEngine(fc)
		if err != nil {
			logger.Warn("Failed to create fallback engine", zap.Error(err), zap.String("provider", string(fc.Provider)))
			continue
		}
		s.fallbacks = append(s.fallbacks, fallback)
	}

	s.initCircuitBreakers()

	return s, nil
}

func (s *Service) createEngine(config EngineConfig) (Engine, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("missing API key for provider %s", config.Provider)
	}

	switch config.Provider {
	case ProviderHERE:
		return NewHEREEngine(config), nil
	case ProviderTomTom:
		return NewTomTomEngine(config), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}

func (s *Service) initCircuitBreakers() {
	engines := append([]Engine{s.primary}, s.fallbacks...)
	for _, engine := range engines {
		s.breakers[engine.Name()] = resilience.NewCircuitBreaker(
			resilience.BuildSettings(
				fmt.Sprintf("traffic-%s", engine.Name()),
				s.config.BreakerIntervalSeconds,
				s.config.BreakerTimeoutSeconds,
				s.config.BreakerFailureThreshold,
				s.config.BreakerSuccessThreshold,
			),
			nil,
		)
	}
}

// QueryIncidents returns incidents around the query center. Results for nearby
// centers share a cache entry keyed by the center's H3 cell. A failure of all
// engines propagates to the caller unchanged.
func (s *Service) QueryIncidents(ctx context.Context, query *IncidentQuery) (*IncidentResult, error) {
	if query.RadiusMeters <= 0 {
		query.RadiusMeters = s.config.DefaultRadiusMeters
	}

	cacheKey := s.incidentCacheKey(query)
	if s.config.CacheEnabled {
		if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
			var result IncidentResult
			if err := json.Unmarshal(cached, &result); err == nil {
				result.CacheHit = true
				return &result, nil
			}
		}
	}

	resp, err := s.executeWithFallback(ctx, func(ctx context.Context, engine Engine) (interface{}, error) {
		return engine.QueryIncidents(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	result := resp.(*IncidentResult)

	if s.config.CacheEnabled {
		if data, err := json.Marshal(result); err == nil {
			_ = s.setCache(ctx, cacheKey, data, time.Duration(s.config.CacheTTLSeconds)*time.Second)
		}
	}

	return result, nil
}

// QueryFlow returns flow conditions around the query center
func (s *Service) QueryFlow(ctx context.Context, query *FlowQuery) (*FlowResult, error) {
	cacheKey := s.flowCacheKey(query)
	if s.config.CacheEnabled {
		if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
			var result FlowResult
			if err := json.Unmarshal(cached, &result); err == nil {
				result.CacheHit = true
				return &result, nil
			}
		}
	}

	resp, err := s.executeWithFallback(ctx, func(ctx context.Context, engine Engine) (interface{}, error) {
		return engine.QueryFlow(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	result := resp.(*FlowResult)

	if s.config.CacheEnabled {
		if data, err := json.Marshal(result); err == nil {
			_ = s.setCache(ctx, cacheKey, data, time.Duration(s.config.CacheTTLSeconds)*time.Second)
		}
	}

	return result, nil
}

// HealthCheck checks the health of all engines
func (s *Service) HealthCheck(ctx context.Context) map[Provider]error {
	results := make(map[Provider]error)

	results[s.primary.Name()] = s.primary.HealthCheck(ctx)
	for _, fb := range s.fallbacks {
		results[fb.Name()] = fb.HealthCheck(ctx)
	}

	return results
}

// PrimaryProvider returns the name of the primary engine
func (s *Service) PrimaryProvider() Provider {
	return s.primary.Name()
}

// executeWithFallback runs fn against the primary engine and falls back to the
// others on failure, each behind its own circuit breaker.
func (s *Service) executeWithFallback(ctx context.Context, fn func(context.Context, Engine) (interface{}, error)) (interface{}, error) {
	engines := append([]Engine{s.primary}, s.fallbacks...)

	var lastErr error
	for _, engine := range engines {
		breaker := s.breakers[engine.Name()]
		if breaker == nil {
			result, err := fn(ctx, engine)
			if err == nil {
				return result, nil
			}
			lastErr = err
			logger.Warn("Traffic engine failed", zap.Error(err), zap.String("provider", string(engine.Name())))
			continue
		}

		result, err := breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
			return fn(ctx, engine)
		})
		if err == nil {
			return result, nil
		}

		lastErr = err
		logger.Warn("Traffic engine failed", zap.Error(err), zap.String("provider", string(engine.Name())))
	}

	return nil, fmt.Errorf("all traffic engines failed: %w", lastErr)
}

// Cache key generation. Incident queries are keyed by the H3 cell of the
// center so taps landing close together reuse the same upstream result.

func (s *Service) incidentCacheKey(query *IncidentQuery) string {
	cell := geo.QueryCacheCell(query.Center.Latitude, query.Center.Longitude)
	return fmt.Sprintf("%sincidents:%s:%d", s.config.CachePrefix, cell, query.RadiusMeters)
}

func (s *Service) flowCacheKey(query *FlowQuery) string {
	cell := geo.QueryCacheCell(query.Center.Latitude, query.Center.Longitude)
	return fmt.Sprintf("%sflow:%s:%d", s.config.CachePrefix, cell, query.RadiusMeters)
}

// Redis cache operations

func (s *Service) getFromCache(ctx context.Context, key string) ([]byte, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("redis not available")
	}

	val, err := s.redis.GetString(ctx, key)
	if err != nil {
		return nil, err
	}

	return []byte(val), nil
}

func (s *Service) setCache(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if s.redis == nil {
		return nil
	}

	return s.redis.SetWithExpiration(ctx, key, string(data), ttl)
}
