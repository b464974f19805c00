package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/mcdev12/excon/go/internal/dbconfig"
	"github.com/mcdev12/excon/go/internal/exercise/checkpoint"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "excon.yaml"

// Channel kinds for the direct broadcast path
const (
	channelNone = "none"
	channelNATS = "nats"
)

type Config struct {
	Exercise   ExerciseConfig    `yaml:"exercise"`
	Sync       SyncConfig        `yaml:"sync"`
	Checkpoint checkpoint.Config `yaml:"checkpoint"`
	Clock      ClockConfig       `yaml:"clock"`
	Server     ServerConfig      `yaml:"server"`
	LogLevel   string            `yaml:"log_level"`
}

// ExerciseConfig seeds metadata that the restored checkpoint leaves empty
type ExerciseConfig struct {
	Name           string `yaml:"name"`
	ControllerName string `yaml:"controller_name"`
	FinishTime     string `yaml:"finish_time"`
}

type SyncConfig struct {
	Deployment string `yaml:"deployment"`
	Channel    string `yaml:"channel"`
	NATSURL    string `yaml:"nats_url"`
}

type ClockConfig struct {
	Period         time.Duration `yaml:"period"`
	RestoreOnStart bool          `yaml:"restore_on_start"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			Deployment: "excon",
			Channel:    channelNone,
			NATSURL:    "nats://localhost:4222",
		},
		Checkpoint: checkpoint.Config{
			Driver:       checkpoint.DriverSQLite,
			SQLitePath:   "excon.db",
			PollInterval: 500 * time.Millisecond,
		},
		Clock: ClockConfig{
			Period:         time.Second,
			RestoreOnStart: true,
		},
		Server: ServerConfig{
			Port:            "8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		LogLevel: "info",
	}
}

// loadConfig reads path over the defaults and then applies environment overrides.
// A missing file is only an error when the path was chosen explicitly.
func loadConfig(path string, explicit bool) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnv(config)
	config.Checkpoint.Postgres = dbconfig.NewConfigFromEnv()

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) {
	config.Server.Port = getEnv("EXCON_PORT", config.Server.Port)
	config.Checkpoint.Driver = checkpoint.Driver(getEnv("EXCON_CHECKPOINT_DRIVER", string(config.Checkpoint.Driver)))
	config.Checkpoint.SQLitePath = getEnv("EXCON_SQLITE_PATH", config.Checkpoint.SQLitePath)
	config.Sync.NATSURL = getEnv("NATS_URL", config.Sync.NATSURL)
	config.Sync.Channel = getEnv("EXCON_CHANNEL", config.Sync.Channel)
	config.Sync.Deployment = getEnv("EXCON_DEPLOYMENT", config.Sync.Deployment)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
}

func (c *Config) validate() error {
	switch checkpoint.Driver(strings.ToLower(string(c.Checkpoint.Driver))) {
	case checkpoint.DriverMemory, checkpoint.DriverSQLite, checkpoint.DriverPostgres:
		c.Checkpoint.Driver = checkpoint.Driver(strings.ToLower(string(c.Checkpoint.Driver)))
	default:
		return fmt.Errorf("unknown checkpoint driver %q", c.Checkpoint.Driver)
	}
	switch c.Sync.Channel {
	case "", channelNone, channelNATS:
	default:
		return fmt.Errorf("unknown sync channel %q", c.Sync.Channel)
	}
	if c.Clock.Period <= 0 {
		return fmt.Errorf("clock period must be positive, got %s", c.Clock.Period)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
