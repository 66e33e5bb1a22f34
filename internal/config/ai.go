package config

import (
	"strings"
	"time"
)

const (
	DefaultAIBaseURL = "https://ai-gateway.vercel.sh/v1"
	DefaultAIModel   = "openai/gpt-4o-mini"
)

// AIConfig holds the text-generation gateway settings
type AIConfig struct {
	APIKey            string  `mapstructure:"api_key" json:"-"` // Never serialize
	BaseURL           string  `mapstructure:"base_url" json:"baseUrl"`
	Model             string  `mapstructure:"model" json:"model"`
	TimeoutMS         int     `mapstructure:"timeout_ms" json:"timeoutMs"`
	MaxConcurrency    int     `mapstructure:"max_concurrency" json:"maxConcurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requestsPerSecond"`
}

// IsEnabled returns true if the gateway is configured
func (c AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

// Endpoint returns the chat completions URL
func (c AIConfig) Endpoint() string {
	base := c.BaseURL
	if base == "" {
		base = DefaultAIBaseURL
	}
	return strings.TrimRight(base, "/") + "/chat/completions"
}

// Timeout returns the per-call deadline
func (c AIConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Concurrency returns the fan-out bound for per-area calls
func (c AIConfig) Concurrency() int {
	if c.MaxConcurrency <= 0 {
		return 1
	}
	return c.MaxConcurrency
}
