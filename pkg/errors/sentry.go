package errors

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/gurbanow/traffic-map/pkg/common"
)

// SentryConfig holds configuration for Sentry integration
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	SampleRate       float64
	Debug            bool
	ServerName       string
	AttachStacktrace bool
}

// DefaultSentryConfig returns a default Sentry configuration from the environment
func DefaultSentryConfig() *SentryConfig {
	sampleRate := 1.0
	if v := os.Getenv("SENTRY_SAMPLE_RATE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 && parsed <= 1 {
			sampleRate = parsed
		}
	}

	environment := os.Getenv("SENTRY_ENVIRONMENT")
	if environment == "" {
		environment = os.Getenv("ENVIRONMENT")
	}
	if environment == "" {
		environment = "development"
	}

	return &SentryConfig{
		DSN:              os.Getenv("SENTRY_DSN"),
		Environment:      environment,
		Release:          os.Getenv("SENTRY_RELEASE"),
		SampleRate:       sampleRate,
		Debug:            os.Getenv("SENTRY_DEBUG") == "true",
		ServerName:       os.Getenv("SERVICE_NAME"),
		AttachStacktrace: true,
	}
}

// InitSentry initializes the Sentry SDK with the given configuration
func InitSentry(config *SentryConfig) error {
	if config.DSN == "" {
		return fmt.Errorf("sentry DSN is not configured")
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Release:          config.Release,
		SampleRate:       config.SampleRate,
		Debug:            config.Debug,
		ServerName:       config.ServerName,
		AttachStacktrace: config.AttachStacktrace,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Client errors are noise, not incidents
			if hint != nil && hint.OriginalException != nil {
				var appErr *common.AppError
				if errors.As(hint.OriginalException, &appErr) && appErr.Code < http.StatusInternalServerError {
					return nil
				}
			}
			return event
		},
	})
}

// Flush waits for buffered events to be delivered
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// CaptureException reports an error to Sentry
func CaptureException(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// AddBreadcrumbForRequest records a request breadcrumb for error context
func AddBreadcrumbForRequest(method, path string, statusCode int, duration time.Duration) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: "http",
		Type:     "http",
		Data: map[string]interface{}{
			"method":      method,
			"path":        path,
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
		},
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	})
}

// ShouldReportError decides whether an error is worth a Sentry event.
// Validation failures and other 4xx-class application errors are skipped.
func ShouldReportError(err error, statusCode int) bool {
	if err == nil {
		return false
	}

	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr.Code >= http.StatusInternalServerError
	}

	return statusCode >= http.StatusInternalServerError
}
