package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Server configuration
	Host string `long:"host" env:"HOST" default:"127.0.0.1" description:"Address to bind the HTTP server to"`
	Port string `long:"port" env:"PORT" default:"8000" description:"HTTP server port"`

	// Cache configuration
	CacheDir       string `long:"cache-dir" env:"CACHE_DIR" default:".cache" description:"Directory for cached upstream feeds"`
	CacheMaxAge    int    `long:"cache-max-age" env:"CACHE_MAX_AGE" default:"86400" description:"Cache freshness window in seconds"`
	CacheMaxSizeMB int    `long:"cache-max-size" env:"CACHE_MAX_SIZE_MB" default:"500" description:"Cache size bound in MB"`

	// Network configuration
	RequestTimeout int `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"30" description:"Upstream request timeout in seconds"`
	MaxPayloadMB   int `long:"max-payload" env:"MAX_PAYLOAD_MB" default:"50" description:"Maximum upstream payload size in MB"`

	// Rate limiting
	RateLimitRequests int `long:"rate-limit-requests" env:"RATE_LIMIT_REQUESTS" default:"100" description:"Requests allowed per client within the window (0 disables limiting)"`
	RateLimitWindow   int `long:"rate-limit-window" env:"RATE_LIMIT_WINDOW" default:"3600" description:"Rate limit window in seconds"`

	// Presets and background work
	PresetsDir        string `long:"presets-dir" env:"PRESETS_DIR" default:"./presets" description:"Directory containing named filter presets"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"300" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the preset management endpoints (optional)"`

	// Application metadata
	Contact string `long:"contact" env:"USER_AGENT_CONTACT" default:"an-impolite-user@example.com" description:"Contact info sent in the User-Agent header"`
	Debug   bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

type rawFilterCommand struct {
	Include string `long:"include" description:"Comma-separated keywords to include"`
	Exclude string `long:"exclude" description:"Comma-separated keywords to exclude"`
	Regex   string `long:"regex" description:"Regex to match the keywords text"`
	Output  string `short:"o" long:"output" description:"Write filtered feed to this file (otherwise prints to stdout)"`

	Args struct {
		Source string `positional-arg-name:"source" description:"URL or local file path to the feed"`
	} `positional-args:"yes" required:"yes"`
}

// Load parses command-line arguments and environment variables.
// It returns nil, nil when help was requested.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg
	var filterCmd rawFilterCommand

	parser := flags.NewParser(&raw, flags.Default)
	parser.SubcommandsOptional = true

	if _, err := parser.AddCommand("filter", "Filter a feed once and exit",
		"Fetch a feed from a URL or local file, filter its items by keywords and print the result.", &filterCmd); err != nil {
		return nil, fmt.Errorf("failed to register filter command: %w", err)
	}

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Host:              raw.Host,
		Port:              raw.Port,
		CacheDir:          raw.CacheDir,
		CacheMaxAge:       raw.CacheMaxAge,
		CacheMaxSizeMB:    raw.CacheMaxSizeMB,
		RequestTimeout:    raw.RequestTimeout,
		MaxPayloadMB:      raw.MaxPayloadMB,
		RateLimitRequests: raw.RateLimitRequests,
		RateLimitWindow:   raw.RateLimitWindow,
		PresetsDir:        raw.PresetsDir,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		Contact:           raw.Contact,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if parser.Active != nil && parser.Active.Name == "filter" {
		cfg.Filter = &FilterCommand{
			Include: filterCmd.Include,
			Exclude: filterCmd.Exclude,
			Regex:   filterCmd.Regex,
			Output:  filterCmd.Output,
			Source:  filterCmd.Args.Source,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
