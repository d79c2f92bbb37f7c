package traffic

import "context"

// Engine is a traffic data source. Implementations wrap one upstream provider.
type Engine interface {
	// QueryIncidents returns incidents around the query center
	QueryIncidents(ctx context.Context, query *IncidentQuery) (*IncidentResult, error)

	// QueryFlow returns traffic flow conditions around the query center
	QueryFlow(ctx context.Context, query *FlowQuery) (*FlowResult, error)

	// HealthCheck verifies the provider is reachable and the credentials work
	HealthCheck(ctx context.Context) error

	Name() Provider
}

// EngineConfig holds configuration for a single traffic engine
type EngineConfig struct {
	Provider       Provider `json:"provider"`
	APIKey         string   `json:"api_key"`
	BaseURL        string   `json:"base_url,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
}

// Config holds the overall traffic service configuration
type Config struct {
	// Primary engine for all queries
	Primary EngineConfig `json:"primary"`

	// Fallback engines (in order of preference)
	Fallbacks []EngineConfig `json:"fallbacks,omitempty"`

	// Caching settings
	CacheEnabled    bool   `json:"cache_enabled"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`
	CachePrefix     string `json:"cache_prefix"`

	// DefaultRadiusMeters is applied when a query omits the radius
	DefaultRadiusMeters int `json:"default_radius_meters"`

	// Circuit breaker tuning per engine
	BreakerIntervalSeconds  int `json:"breaker_interval_seconds"`
	BreakerTimeoutSeconds   int `json:"breaker_timeout_seconds"`
	BreakerFailureThreshold int `json:"breaker_failure_threshold"`
	BreakerSuccessThreshold int `json:"breaker_success_threshold"`
}

// DefaultConfig returns sensible defaults for the traffic service
func DefaultConfig() Config {
	return Config{
		CacheEnabled:            true,
		CacheTTLSeconds:         60,
		CachePrefix:             "traffic:",
		DefaultRadiusMeters:     1000,
		BreakerIntervalSeconds:  60,
		BreakerTimeoutSeconds:   30,
		BreakerFailureThreshold: 5,
		BreakerSuccessThreshold: 2,
	}
}
