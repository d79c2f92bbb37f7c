package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Session    SessionConfig
	Traffic    TrafficConfig
	Events     EventsConfig
	Resilience ResilienceConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	Environment    string
	ServiceName    string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	RequestTimeout int // seconds
	CORSOrigins    string // Comma-separated list of allowed origins
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// SessionConfig holds viewer session token configuration
type SessionConfig struct {
	Secret     string
	Expiration int // in hours
}

// TrafficConfig holds traffic provider configuration
type TrafficConfig struct {
	Provider         string // primary provider: "here" or "tomtom"
	HEREAPIKey       string
	TomTomAPIKey     string
	TimeoutSeconds   int
	CacheTTLSeconds  int
	RadiusMeters     int    // query radius around a tap
	ScenesServiceURL string // launcher -> scenes base URL
}

// EventsConfig holds NATS event bus configuration
type EventsConfig struct {
	URL     string
	Enabled bool
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-provider breaker tuning
type CircuitBreakerConfig struct {
	Enabled           bool
	FailureThreshold  int
	SuccessThreshold  int
	TimeoutSeconds    int
	IntervalSeconds   int
	ProviderOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific traffic provider
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Environment:    getEnv("ENVIRONMENT", "development"),
			ServiceName:    serviceName,
			ReadTimeout:    getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout:   getEnvAsInt("WRITE_TIMEOUT", 10),
			RequestTimeout: getEnvAsInt("REQUEST_TIMEOUT", 15),
			CORSOrigins:    getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			Secret:     getEnv("SESSION_SECRET", "change-me-in-production"),
			Expiration: getEnvAsInt("SESSION_EXPIRATION", 12),
		},
		Traffic: TrafficConfig{
			Provider:         getEnv("TRAFFIC_PROVIDER", "here"),
			HEREAPIKey:       getEnv("HERE_API_KEY", ""),
			TomTomAPIKey:     getEnv("TOMTOM_API_KEY", ""),
			TimeoutSeconds:   getEnvAsInt("TRAFFIC_TIMEOUT_SECONDS", 10),
			CacheTTLSeconds:  getEnvAsInt("TRAFFIC_CACHE_TTL_SECONDS", 60),
			RadiusMeters:     getEnvAsInt("TRAFFIC_QUERY_RADIUS_METERS", 1000),
			ScenesServiceURL: getEnv("SCENES_SERVICE_URL", "http://localhost:8084"),
		},
		Events: EventsConfig{
			URL:     getEnv("NATS_URL", ""),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
	}

	if overrides := getEnv("CB_PROVIDER_OVERRIDES", ""); overrides != "" {
		var providerConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(overrides), &providerConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_PROVIDER_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ProviderOverrides = providerConfig
	}

	if cfg.Resilience.CircuitBreaker.TimeoutSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.TimeoutSeconds = 30
	}
	if cfg.Resilience.CircuitBreaker.IntervalSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.IntervalSeconds = 60
	}
	if cfg.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.FailureThreshold = 5
	}
	if cfg.Resilience.CircuitBreaker.SuccessThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.SuccessThreshold = 1
	}
	if cfg.Traffic.RadiusMeters <= 0 {
		cfg.Traffic.RadiusMeters = 1000
	}

	return cfg, nil
}

// SettingsFor returns effective breaker settings for a specific traffic provider
func (c CircuitBreakerConfig) SettingsFor(provider string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if c.ProviderOverrides != nil {
		if override, ok := c.ProviderOverrides[provider]; ok {
			if override.FailureThreshold > 0 {
				settings.FailureThreshold = override.FailureThreshold
			}
			if override.SuccessThreshold > 0 {
				settings.SuccessThreshold = override.SuccessThreshold
			}
			if override.TimeoutSeconds > 0 {
				settings.TimeoutSeconds = override.TimeoutSeconds
			}
			if override.IntervalSeconds > 0 {
				settings.IntervalSeconds = override.IntervalSeconds
			}
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// RequestTimeoutDuration returns the per-request timeout as a duration
func (c *ServerConfig) RequestTimeoutDuration() time.Duration {
	if c.RequestTimeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
