package pluginscan

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/mamamialezatoz/go-wpscan-plugins/internal/detection"
)

// Config contains configuration options for the scanner
type Config struct {
	// Headers are sent with every request; nil uses the browser-like defaults
	Headers http.Header
	// Timeout bounds every network call
	Timeout time.Duration
	// MaxBodySize limits the maximum body size to read (0 = no limit)
	MaxBodySize int64
	// InsecureSkipVerify disables TLS certificate verification
	InsecureSkipVerify bool
	// HTTPClient replaces the default HTTP client
	HTTPClient *http.Client
	// Fetcher replaces the readme fetcher, mostly for tests
	Fetcher detection.ContentFetcher
	// Concurrency is the number of plugins evaluated in parallel
	Concurrency int
	// SignalTypes are registered on top of Comment and MetaTag
	SignalTypes []detection.SignalType
	// Logger receives scan diagnostics
	Logger *slog.Logger
	// Tracer records scan spans
	Tracer trace.Tracer
}

// Option is a function that configures the scanner
type Option func(*Config)

// WithHeaders sets the request headers used for every fetch
func WithHeaders(headers http.Header) Option {
	return func(c *Config) {
		c.Headers = headers
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxBodySize sets the maximum body size to read
func WithMaxBodySize(size int64) Option {
	return func(c *Config) {
		c.MaxBodySize = size
	}
}

// WithInsecureSkipVerify disables TLS certificate verification
func WithInsecureSkipVerify() Option {
	return func(c *Config) {
		c.InsecureSkipVerify = true
	}
}

// WithHTTPClient sets the HTTP client used for all fetches
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithFetcher sets the fetcher used for readme lookups
func WithFetcher(fetcher detection.ContentFetcher) Option {
	return func(c *Config) {
		c.Fetcher = fetcher
	}
}

// WithConcurrency evaluates up to n plugins in parallel.
// Findings are still reported in ruleset order.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Concurrency = n
	}
}

// WithSignalTypes enables additional signal types such as detection.ScriptTag
func WithSignalTypes(types ...detection.SignalType) Option {
	return func(c *Config) {
		c.SignalTypes = append(c.SignalTypes, types...)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTracer sets the OpenTelemetry tracer
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Config) {
		c.Tracer = tracer
	}
}
