package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"krakenkit/internal/ratelimit"
)

// Default endpoints.
const (
	DefaultAPIURL = "https://api.kraken.com"
	DefaultWSURL  = "wss://ws.kraken.com"
)

// Credentials holds one API key pair.
type Credentials struct {
	// APIKey is the public API key identifier sent in the API-Key header.
	APIKey string `json:"api_key" mapstructure:"api_key" validate:"required"`
	// APISecret is the base64-encoded private key used to sign requests.
	APISecret string `json:"api_secret" mapstructure:"api_secret" validate:"required,base64"`
}

// Config contains all configuration options for a client.
type Config struct {
	APIURL    string `json:"api_url" mapstructure:"api_url" validate:"required,url"`
	WSURL     string `json:"ws_url" mapstructure:"ws_url" validate:"required,url"`
	UserAgent string `json:"user_agent" mapstructure:"user_agent"`

	// Keys are tried in order when signing private requests; a key is rotated out after
	// authentication or rate-limit failures.
	Keys []Credentials `json:"keys,omitempty" mapstructure:"keys" validate:"dive"`

	// Timeout is the maximum duration for HTTP requests.
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout" validate:"min=1ms"`
	MaxRetries   int           `json:"max_retries" mapstructure:"max_retries" validate:"min=0"`
	RetryWaitMin time.Duration `json:"retry_wait_min" mapstructure:"retry_wait_min" validate:"min=0"`
	RetryWaitMax time.Duration `json:"retry_wait_max" mapstructure:"retry_wait_max" validate:"min=0"`

	// TierLimits overrides bucket sizes, keyed by "tier1".."tier4".
	TierLimits map[string]ratelimit.TierConfig `json:"tier_limits,omitempty" mapstructure:"tier_limits" validate:"dive,keys,oneof=tier1 tier2 tier3 tier4,endkeys"`
	// FairQueueing serves REST callers of the same tier in arrival order.
	FairQueueing bool `json:"fair_queueing" mapstructure:"fair_queueing"`

	CacheEnabled bool          `json:"cache_enabled" mapstructure:"cache_enabled"`
	CacheTTL     time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" validate:"min=0"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled" mapstructure:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold" mapstructure:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold" mapstructure:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout" mapstructure:"circuit_breaker_timeout"`

	WSTransport string `json:"ws_transport" mapstructure:"ws_transport" validate:"oneof=gws gorilla"`
	// WSBufferSize bounds both the outbound command queue and the inbound message queue.
	WSBufferSize int `json:"ws_buffer_size" mapstructure:"ws_buffer_size" validate:"min=1"`
	// WSReadTimeout fails a session whose peer is silent for that long. Zero disables it.
	WSReadTimeout time.Duration `json:"ws_read_timeout" mapstructure:"ws_read_timeout" validate:"min=0"`
	// WSCommandRate and WSCommandPeriod throttle outbound commands. Zero rate disables it.
	WSCommandRate   int           `json:"ws_command_rate" mapstructure:"ws_command_rate" validate:"min=0"`
	WSCommandPeriod time.Duration `json:"ws_command_period" mapstructure:"ws_command_period" validate:"min=0"`

	MetricsEnabled bool   `json:"metrics_enabled" mapstructure:"metrics_enabled"`
	LogLevel       string `json:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config initialized with sensible defaults.
// Default values: 10s timeout, 3 retries, 100ms-1s retry wait, published tier limits,
// 1m cache TTL, circuit breaker with 5 failures/2 successes/30s timeout,
// gws transport with 100-slot queues and no read timeout.
func DefaultConfig() *Config {
	return &Config{
		APIURL:       DefaultAPIURL,
		WSURL:        DefaultWSURL,
		UserAgent:    "krakenkit/1.0",
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 1 * time.Second,

		CacheEnabled: true,
		CacheTTL:     time.Minute,

		CircuitBreakerEnabled:          true,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		WSTransport:  "gws",
		WSBufferSize: 100,

		LogLevel: "info",
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return errors.New("CircuitBreakerFailThreshold must be positive when enabled")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return errors.New("CircuitBreakerSuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreakerTimeout <= 0 {
			return errors.New("CircuitBreakerTimeout must be positive when enabled")
		}
	}
	if c.WSCommandRate > 0 && c.WSCommandPeriod <= 0 {
		return errors.New("WSCommandPeriod must be positive when WSCommandRate is set")
	}
	return nil
}

// LimiterOptions translates the tier settings into limiter options.
func (c *Config) LimiterOptions() ([]ratelimit.Option, error) {
	opts := []ratelimit.Option{ratelimit.WithFairness(c.FairQueueing)}
	for name, cfg := range c.TierLimits {
		tier, err := ParseTier(name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ratelimit.WithTierConfig(tier, cfg))
	}
	return opts, nil
}

// ParseTier resolves "tier1".."tier4".
func ParseTier(name string) (ratelimit.Tier, error) {
	for _, tier := range ratelimit.Tiers {
		if tier.String() == name {
			return tier, nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", name)
}

// HasCredentials reports whether at least one key pair is configured.
func (c *Config) HasCredentials() bool {
	return len(c.Keys) > 0
}

// WithCredentials appends a key pair and returns the config for chaining.
func (c *Config) WithCredentials(creds Credentials) *Config {
	c.Keys = append(c.Keys, creds)
	return c
}

// WithURLs overrides the REST and websocket endpoints and returns the config for chaining.
func (c *Config) WithURLs(apiURL, wsURL string) *Config {
	c.APIURL = apiURL
	c.WSURL = wsURL
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithTierLimit overrides one tier's bucket and returns the config for chaining.
func (c *Config) WithTierLimit(tier ratelimit.Tier, cfg ratelimit.TierConfig) *Config {
	if c.TierLimits == nil {
		c.TierLimits = make(map[string]ratelimit.TierConfig)
	}
	c.TierLimits[tier.String()] = cfg
	return c
}

// WithFairQueueing enables or disables FIFO ordering of REST waiters and returns the config for chaining.
func (c *Config) WithFairQueueing(enabled bool) *Config {
	c.FairQueueing = enabled
	return c
}

// WithCache enables or disables caching with the specified TTL and returns the config for chaining.
func (c *Config) WithCache(enabled bool, ttl time.Duration) *Config {
	c.CacheEnabled = enabled
	c.CacheTTL = ttl
	return c
}

// WithStream sets the websocket transport, queue size and read timeout and returns the config for chaining.
func (c *Config) WithStream(transport string, bufferSize int, readTimeout time.Duration) *Config {
	c.WSTransport = transport
	c.WSBufferSize = bufferSize
	c.WSReadTimeout = readTimeout
	return c
}

// WithCommandThrottle limits outbound stream commands and returns the config for chaining.
func (c *Config) WithCommandThrottle(rate int, period time.Duration) *Config {
	c.WSCommandRate = rate
	c.WSCommandPeriod = period
	return c
}
