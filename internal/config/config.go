// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"morningpages/internal/logger"

	"gopkg.in/yaml.v3"
)

const (
	envPrefix          = "MORNINGPAGES_"
	minRefreshInterval = time.Minute
)

type Config struct {
	DBPath string        `yaml:"db_path"`
	Relay  RelayConfig   `yaml:"relay"`
	Fetch  FetchConfig   `yaml:"fetch"`
	Watch  WatchConfig   `yaml:"watch"`
	Log    logger.Config `yaml:"log"`
}

type RelayConfig struct {
	Port int `yaml:"port"`
	// Timeout bounds one upstream request made by the relay.
	Timeout time.Duration `yaml:"timeout"`
}

type FetchConfig struct {
	// Transports are tried in order: "direct" or a relay base URL that accepts ?url=.
	Transports      []string      `yaml:"transports"`
	Timeout         time.Duration `yaml:"timeout"`
	Concurrency     int           `yaml:"concurrency"`
	MaxItemsPerFeed int           `yaml:"max_items_per_feed"`
}

type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{}
	setDefaults(&cfg)
	return cfg
}

// Load reads the optional YAML file at path (${VAR} references are expanded),
// then applies MORNINGPAGES_* environment overrides and fills defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		}
		expanded := os.Expand(string(data), os.Getenv)
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	setDefaults(&cfg)
	return cfg, cfg.Validate()
}

func setDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = "data/morningpages.db"
	}
	if cfg.Relay.Port == 0 {
		cfg.Relay.Port = 8787
	}
	if cfg.Relay.Timeout == 0 {
		cfg.Relay.Timeout = 25 * time.Second
	}
	if len(cfg.Fetch.Transports) == 0 {
		cfg.Fetch.Transports = []string{"direct", "https://corsproxy.io/"}
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 25 * time.Second
	}
	if cfg.Fetch.Concurrency == 0 {
		cfg.Fetch.Concurrency = 4
	}
	if cfg.Fetch.MaxItemsPerFeed == 0 {
		cfg.Fetch.MaxItemsPerFeed = 25
	}
	if cfg.Watch.Interval == 0 {
		cfg.Watch.Interval = 15 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate rejects values no component can work with. A refresh interval under
// a minute is raised to one minute.
func (c *Config) Validate() error {
	if c.Relay.Port < 1 || c.Relay.Port > 65535 {
		return fmt.Errorf("relay port %d out of range", c.Relay.Port)
	}
	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch concurrency must be at least 1, got %d", c.Fetch.Concurrency)
	}
	if c.Fetch.MaxItemsPerFeed < 1 {
		return fmt.Errorf("max items per feed must be at least 1, got %d", c.Fetch.MaxItemsPerFeed)
	}
	if c.Fetch.Timeout < 0 || c.Relay.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Watch.Interval < minRefreshInterval {
		c.Watch.Interval = minRefreshInterval
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
		cfg.Relay.Port = p
	}
	if v := getenv("TRANSPORTS"); v != "" {
		cfg.Fetch.Transports = splitList(v)
	}
	if v := getenv("CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCONCURRENCY: %w", envPrefix, err)
		}
		cfg.Fetch.Concurrency = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"FETCH_TIMEOUT", &cfg.Fetch.Timeout},
		{"RELAY_TIMEOUT", &cfg.Relay.Timeout},
		{"REFRESH_INTERVAL", &cfg.Watch.Interval},
	}
	for _, d := range durations {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, d.key, err)
		}
		*d.dst = parsed
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	return nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) GetAddress() string {
	return fmt.Sprintf(":%d", c.Relay.Port)
}
