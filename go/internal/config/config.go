package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Notification backends.
const (
	BackendLog    = "log"
	BackendNATS   = "nats"
	BackendOutbox = "outbox"
)

// Config is the watcher configuration: config.yaml overlaid with the
// environment.
type Config struct {
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Server      ServerConfig      `yaml:"server"`
	Poll        PollConfig        `yaml:"poll"`
	Notify      NotifyConfig      `yaml:"notify"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`

	// Watch lists auctions polled even without subscribers.
	Watch []string `yaml:"watch"`
}

type MarketplaceConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type NotifyConfig struct {
	Backend string       `yaml:"backend"`
	NATS    NATSConfig   `yaml:"nats"`
	Outbox  OutboxConfig `yaml:"outbox"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxRetries   int           `yaml:"max_retries"`
	// RelayTo is where relayed notifications go: log or nats.
	RelayTo string `yaml:"relay_to"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Marketplace: MarketplaceConfig{
			BaseURL: "http://localhost:5000/api",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{Port: "8080"},
		Poll:   PollConfig{Interval: 10 * time.Second},
		Notify: NotifyConfig{
			Backend: BackendLog,
			NATS: NATSConfig{
				URL:           "nats://localhost:4222",
				Stream:        "AUCTION_NOTIFICATIONS",
				SubjectPrefix: "auction.notifications",
			},
			Outbox: OutboxConfig{
				PollInterval: 5 * time.Second,
				BatchSize:    100,
				MaxRetries:   3,
				RelayTo:      BackendLog,
			},
		},
		Log:      LogConfig{Level: "info", Format: "console"},
		Database: DefaultDatabaseConfig(),
	}
}

// Load reads path (a missing file is not an error) and applies environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Marketplace.BaseURL = getEnv("MARKETPLACE_BASE_URL", c.Marketplace.BaseURL)
	c.Marketplace.Token = getEnv("MARKETPLACE_TOKEN", c.Marketplace.Token)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Poll.Interval = getEnvAsDuration("POLL_INTERVAL", c.Poll.Interval)
	c.Notify.Backend = getEnv("NOTIFY_BACKEND", c.Notify.Backend)
	c.Notify.NATS.URL = getEnv("NATS_URL", c.Notify.NATS.URL)
	c.Notify.Outbox.BatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", c.Notify.Outbox.BatchSize)
	c.Notify.Outbox.RelayTo = getEnv("OUTBOX_RELAY_TO", c.Notify.Outbox.RelayTo)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Database.applyEnv()

	if ids := getEnv("WATCH_AUCTIONS", ""); ids != "" {
		c.Watch = nil
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.Watch = append(c.Watch, id)
			}
		}
	}
}

// Validate checks the settings the watcher cannot run without.
func (c *Config) Validate() error {
	if c.Marketplace.BaseURL == "" {
		return errors.New("marketplace base url is required")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Poll.Interval)
	}
	switch c.Notify.Backend {
	case BackendLog, BackendNATS, BackendOutbox:
	default:
		return fmt.Errorf("unknown notify backend %q", c.Notify.Backend)
	}
	if c.Notify.Backend == BackendOutbox {
		switch c.Notify.Outbox.RelayTo {
		case BackendLog, BackendNATS:
		default:
			return fmt.Errorf("unknown outbox relay target %q", c.Notify.Outbox.RelayTo)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15s") or a plain number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
