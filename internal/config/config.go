// Package config loads the runtime's configuration: listening addresses,
// connection admission limits, logging verbosity, and the snapshot
// persistence path. Configuration is read from an optional TOML file via
// github.com/BurntSushi/toml, then overlaid with environment variables, so
// the runtime can be configured either by dropping a file next to the
// injected binary or by the process that launched it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shmocz/ra2yrcpp-sub000/internal/obslog"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	// Command is the listener configuration for the command connection.
	Command ListenerConfig `toml:"command"`
	// Poll is the listener configuration for the poll connection. When
	// Poll.Address is empty, the poll connection shares Command's listener
	// (clients still open two connections; both land on one socket).
	Poll ListenerConfig `toml:"poll"`

	// MaxClients bounds concurrently admitted connections. Zero means
	// unlimited.
	MaxClients int `toml:"max_clients"`
	// AllowedHostRegex, if set, restricts admission to peers whose address
	// matches the expression.
	AllowedHostRegex string `toml:"allowed_host_regex"`
	// AdmitRate and AdmitBurst configure the sliding-window connection
	// admission limiter; AdmitRate is connections-per-second.
	AdmitRate  float64 `toml:"admit_rate"`
	AdmitBurst int     `toml:"admit_burst"`

	// FlushMaxCount is the result limit of a poll whose request gives no
	// MaxCount. FlushPartialTimeout is the per-attempt wait of the loop that
	// answers a blocking CLIENT_COMMAND. A poll's timeout is always the
	// client's own; a zero timeout never blocks.
	FlushMaxCount       int           `toml:"flush_max_count"`
	FlushPartialTimeout time.Duration `toml:"flush_partial_timeout"`

	// SnapshotPath, if set, persists every callback-bridge snapshot to a
	// gzip-compressed, length-prefixed record file at this path.
	SnapshotPath string `toml:"snapshot_path"`

	// LogLevel is the minimum logiface.Level that will be emitted.
	LogLevel obslog.Level `toml:"-"`
	// LogLevelName is the raw string form, as read from file or
	// environment, resolved into LogLevel by Resolve.
	LogLevelName string `toml:"log_level"`
	// LogJSON selects JSON log output over the human-readable console
	// writer.
	LogJSON bool `toml:"log_json"`
}

// ListenerConfig is a single TCP listener's address and protocol framing.
type ListenerConfig struct {
	// Address is a host:port pair, e.g. "127.0.0.1:14520".
	Address string `toml:"address"`
	// HTTPFallback additionally accepts HTTP/1.1 requests framed as
	// described by the JSON protocol fallback.
	HTTPFallback bool `toml:"http_fallback"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() Config {
	return Config{
		Command:             ListenerConfig{Address: "127.0.0.1:14520", HTTPFallback: true},
		Poll:                ListenerConfig{Address: "127.0.0.1:14521", HTTPFallback: true},
		MaxClients:          32,
		AdmitRate:           5,
		AdmitBurst:          10,
		FlushMaxCount:       16,
		FlushPartialTimeout: 50 * time.Millisecond,
		LogLevelName:        "info",
		LogLevel:            obslog.LevelInfo,
		LogJSON:             true,
	}
}

// envPrefix namespaces every environment variable this package reads.
const envPrefix = "RA2YRCPP_"

// Load resolves configuration by starting from Default, overlaying path (if
// non-empty) as a TOML file, then overlaying process environment variables
// of the form RA2YRCPP_<FIELD>. path may be empty, in which case only the
// environment overlay is applied.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	overlayEnv(&cfg)

	if err := cfg.Resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	b := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v == "1" || strings.EqualFold(v, "true")
		}
	}
	i := func(key string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	f := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = n
			}
		}
	}
	d := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			if n, err := time.ParseDuration(v); err == nil {
				*dst = n
			}
		}
	}

	str("COMMAND_ADDRESS", &cfg.Command.Address)
	str("POLL_ADDRESS", &cfg.Poll.Address)
	b("COMMAND_HTTP_FALLBACK", &cfg.Command.HTTPFallback)
	b("POLL_HTTP_FALLBACK", &cfg.Poll.HTTPFallback)
	i("MAX_CLIENTS", &cfg.MaxClients)
	str("ALLOWED_HOST_REGEX", &cfg.AllowedHostRegex)
	f("ADMIT_RATE", &cfg.AdmitRate)
	i("ADMIT_BURST", &cfg.AdmitBurst)
	i("FLUSH_MAX_COUNT", &cfg.FlushMaxCount)
	d("FLUSH_PARTIAL_TIMEOUT", &cfg.FlushPartialTimeout)
	str("SNAPSHOT_PATH", &cfg.SnapshotPath)
	str("LOG_LEVEL", &cfg.LogLevelName)
	b("LOG_JSON", &cfg.LogJSON)
}

// Resolve parses derived fields (currently just LogLevelName into LogLevel)
// and validates the configuration. Called automatically by Load; exported
// so callers constructing a Config literally (e.g. in tests) can still get
// LogLevel populated.
func (c *Config) Resolve() error {
	if c.MaxClients < 0 {
		return fmt.Errorf("config: max_clients must be >= 0, got %d", c.MaxClients)
	}
	if c.AdmitRate < 0 || c.AdmitBurst < 0 {
		return fmt.Errorf("config: admit_rate and admit_burst must be >= 0")
	}
	if c.Command.Address == "" {
		return fmt.Errorf("config: command.address must not be empty")
	}

	lvl, err := parseLevel(c.LogLevelName)
	if err != nil {
		return err
	}
	c.LogLevel = lvl
	return nil
}

func parseLevel(name string) (obslog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info", "informational":
		return obslog.LevelInfo, nil
	case "trace":
		return obslog.LevelTrace, nil
	case "debug":
		return obslog.LevelDebug, nil
	case "warn", "warning":
		return obslog.LevelWarning, nil
	case "error":
		return obslog.LevelError, nil
	case "disabled", "off", "none":
		return obslog.LevelDisabled, nil
	default:
		return 0, fmt.Errorf("config: unrecognized log_level %q", name)
	}
}
