package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. COACHGEN_LINK_DEVICE.
const EnvPrefix = "COACHGEN"

// LinkConfig - serial link settings
type LinkConfig struct {
	Device      string        `mapstructure:"device"`
	BaudRate    int           `mapstructure:"baud_rate"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"` // commands per second, 0 = unlimited
	RateBurst   int           `mapstructure:"rate_burst"`
}

// GeneratorConfig - event source settings
type GeneratorConfig struct {
	Cabins int           `mapstructure:"cabins"`
	Seed   uint64        `mapstructure:"seed"` // 0 = unseeded
	Pace   time.Duration `mapstructure:"pace"` // pause after each interactive command
}

// ScenarioConfig - demo and script settings
type ScenarioConfig struct {
	TimeUnit   time.Duration `mapstructure:"time_unit"`
	ScriptsDir string        `mapstructure:"scripts_dir"`
}

// ServerConfig - monitor HTTP server; an empty port disables it
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MQTTConfig - MQTT bridge
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"` // tcp://IP:PORT
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// LogConfig - logging
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Config is the root configuration.
type Config struct {
	Link      LinkConfig      `mapstructure:"link"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Scenario  ScenarioConfig  `mapstructure:"scenario"`
	Server    ServerConfig    `mapstructure:"server"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Log       LogConfig       `mapstructure:"log"`

	SchedulesFile string `mapstructure:"schedules_file"`
}

// Load reads configuration from path, or from configs/coachgen.* when path is
// empty. A missing default file is not an error; every key has a default and
// may be overridden from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("coachgen")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	// Link Defaults
	v.SetDefault("link.device", "/dev/ttyACM0")
	v.SetDefault("link.baud_rate", 115200)
	v.SetDefault("link.settle_delay", "2s")
	v.SetDefault("link.read_timeout", "1s")
	v.SetDefault("link.rate_limit", 0.0)
	v.SetDefault("link.rate_burst", 1)

	// Generator Defaults
	v.SetDefault("generator.cabins", 10)
	v.SetDefault("generator.seed", 0)
	v.SetDefault("generator.pace", "500ms")

	// Scenario Defaults
	v.SetDefault("scenario.time_unit", "1s")
	v.SetDefault("scenario.scripts_dir", "scenarios")

	v.SetDefault("schedules_file", "schedules.json")

	// Server Defaults
	v.SetDefault("server.port", "")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8080"})

	// MQTT Defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "coach-event-generator")
	v.SetDefault("mqtt.topic_prefix", "coach")

	v.SetDefault("log.level", "info")
}

func (c *Config) sanitize() {
	c.Link.Device = strings.TrimSpace(c.Link.Device)
	c.Scenario.ScriptsDir = strings.TrimSpace(c.Scenario.ScriptsDir)
	c.SchedulesFile = strings.TrimSpace(c.SchedulesFile)
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	c.MQTT.TopicPrefix = strings.TrimSuffix(strings.TrimSpace(c.MQTT.TopicPrefix), "/")
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

// Validate rejects settings the generator cannot run with.
func (c *Config) Validate() error {
	if c.Link.Device == "" {
		return fmt.Errorf("config error: 'link.device' must not be empty")
	}
	if c.Link.BaudRate <= 0 {
		return fmt.Errorf("config error: 'link.baud_rate' must be positive, got %d", c.Link.BaudRate)
	}
	if c.Link.SettleDelay < 0 || c.Link.ReadTimeout < 0 {
		return fmt.Errorf("config error: link durations must not be negative")
	}
	if c.Link.RateLimit < 0 {
		return fmt.Errorf("config error: 'link.rate_limit' must not be negative")
	}
	if c.Link.RateLimit > 0 && c.Link.RateBurst < 1 {
		return fmt.Errorf("config error: 'link.rate_burst' must be at least 1 when rate limiting")
	}
	if c.Generator.Cabins < 1 {
		return fmt.Errorf("config error: 'generator.cabins' must be at least 1, got %d", c.Generator.Cabins)
	}
	if c.Generator.Pace < 0 || c.Scenario.TimeUnit < 0 {
		return fmt.Errorf("config error: pacing durations must not be negative")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("config error: 'mqtt.broker' is required when mqtt is enabled")
	}
	return nil
}
