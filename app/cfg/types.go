package cfg

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

type Cfg struct {
	// Server configuration
	Host string
	Port string

	// Cache configuration
	CacheDir       string
	CacheMaxAge    int // seconds
	CacheMaxSizeMB int

	// Network configuration
	RequestTimeout int // seconds
	MaxPayloadMB   int

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   int // seconds

	// Presets and background work
	PresetsDir        string
	WorkerCount       int
	SchedulerInterval int // seconds
	APIAccessKey      string

	// Application metadata
	Contact string
	Debug   bool
	Version string

	// Filter is set when the one-shot filter command was requested instead of the server.
	Filter *FilterCommand
}

type FilterCommand struct {
	Include string
	Exclude string
	Regex   string
	Output  string
	Source  string
}

func (c *Cfg) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Cfg) CacheMaxAgeDuration() time.Duration {
	return time.Duration(c.CacheMaxAge) * time.Second
}

func (c *Cfg) CacheMaxSizeBytes() int64 {
	return int64(c.CacheMaxSizeMB) * 1024 * 1024
}

func (c *Cfg) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Cfg) MaxPayloadBytes() int64 {
	return int64(c.MaxPayloadMB) * 1024 * 1024
}

func (c *Cfg) RateLimitWindowDuration() time.Duration {
	return time.Duration(c.RateLimitWindow) * time.Second
}

func (c *Cfg) SchedulerIntervalDuration() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

// UserAgent identifies outbound requests, including a contact address for feed operators.
func (c *Cfg) UserAgent() string {
	return fmt.Sprintf("rss-sift/%s (%s)", c.Version, c.Contact)
}

// Generator is the value written to the <generator> element of filtered feeds.
func (c *Cfg) Generator() string {
	return fmt.Sprintf("RSS-Sift/%s", c.Version)
}

func (c *Cfg) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q: %w", c.Port, err)
	}

	positiveFields := map[string]int{
		"cache max age":      c.CacheMaxAge,
		"cache max size":     c.CacheMaxSizeMB,
		"request timeout":    c.RequestTimeout,
		"max payload":        c.MaxPayloadMB,
		"rate limit window":  c.RateLimitWindow,
		"worker count":       c.WorkerCount,
		"scheduler interval": c.SchedulerInterval,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if c.RateLimitRequests < 0 {
		return fmt.Errorf("rate limit requests must be non-negative")
	}

	if c.CacheDir == "" {
		return fmt.Errorf("cache dir is required")
	}

	return nil
}
