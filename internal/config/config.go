// Package config loads the bot configuration from a YAML file, .env files and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// TokenEnv is read when the file leaves discord.token empty.
const TokenEnv = "FORGE_DISCORD_TOKEN"

// Config is the complete bot configuration.
type Config struct {
	Discord  DiscordConfig  `mapstructure:"discord" yaml:"discord"`
	Delivery DeliveryConfig `mapstructure:"delivery" yaml:"delivery"`
	Flow     FlowConfig     `mapstructure:"flow" yaml:"flow"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Catalog  CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`
	Admin    AdminConfig    `mapstructure:"admin" yaml:"admin"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DiscordConfig configures the platform binding.
type DiscordConfig struct {
	Token        string `mapstructure:"token" yaml:"token"`
	GuildID      string `mapstructure:"guild_id" yaml:"guild_id"`
	CategoryID   string `mapstructure:"category_id" yaml:"category_id"`
	Command      string `mapstructure:"command" yaml:"command"`
	CommandGuild string `mapstructure:"command_guild" yaml:"command_guild"`
}

// DeliveryConfig configures surface resolution.
type DeliveryConfig struct {
	Mode string        `mapstructure:"mode" yaml:"mode"`
	Idle time.Duration `mapstructure:"idle" yaml:"idle"`
	// PrivateRetry is how long an owner who refused direct messages stays on ephemeral surfaces.
	PrivateRetry time.Duration `mapstructure:"private_retry" yaml:"private_retry"`
}

// FlowConfig configures the selection flow timings.
type FlowConfig struct {
	MidFlowTimeout        time.Duration `mapstructure:"mid_flow_timeout" yaml:"mid_flow_timeout"`
	PostCompletionTimeout time.Duration `mapstructure:"post_completion_timeout" yaml:"post_completion_timeout"`
	DuplicateWindow       time.Duration `mapstructure:"duplicate_window" yaml:"duplicate_window"`
}

// SessionConfig selects and tunes the session store.
type SessionConfig struct {
	Store        string        `mapstructure:"store" yaml:"store"`
	TTL          time.Duration `mapstructure:"ttl" yaml:"ttl"`
	ReapInterval time.Duration `mapstructure:"reap_interval" yaml:"reap_interval"`
	Redis        RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig is used when session.store is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	Locking  bool   `mapstructure:"locking" yaml:"locking"`
}

// StorageConfig locates the durable record database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// CatalogConfig locates the crafting catalog.
type CatalogConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AdminConfig configures the admin HTTP server. An empty address disables it.
type AdminConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	return &Config{
		Discord:  DiscordConfig{Command: "request"},
		Delivery: DeliveryConfig{Mode: "private", Idle: 10 * time.Minute, PrivateRetry: time.Hour},
		Flow: FlowConfig{
			MidFlowTimeout:        10 * time.Minute,
			PostCompletionTimeout: 30 * time.Minute,
			DuplicateWindow:       5 * time.Second,
		},
		Session: SessionConfig{
			Store:        "memory",
			TTL:          24 * time.Hour,
			ReapInterval: 30 * time.Minute,
			Redis:        RedisConfig{Addr: "localhost:6379", Prefix: "forge:"},
		},
		Storage: StorageConfig{Path: "data/forge.db"},
		Catalog: CatalogConfig{Path: "catalog.yaml"},
		Admin:   AdminConfig{Addr: ":9090"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// LoadEnvFiles loads .env and .env.local. Existing variables are not overwritten
// and missing files are skipped.
func LoadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
// ${VAR} and ${VAR:-default} references are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv(TokenEnv)
	}
	return cfg, nil
}

// Parse decodes YAML data over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &raw); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           c,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// expandEnv replaces ${VAR} and ${VAR:-default}.
func expandEnv(s string) string {
	return os.Expand(s, func(ref string) string {
		name, def, hasDefault := strings.Cut(ref, ":-")
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return ""
	})
}

// Validate checks the configuration for values the bot cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Delivery.Mode {
	case "private", "ephemeral":
	default:
		errs = append(errs, fmt.Errorf("delivery.mode must be private or ephemeral, got %q", c.Delivery.Mode))
	}
	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Session.Redis.Addr == "" {
			errs = append(errs, errors.New("session.redis.addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.store must be memory or redis, got %q", c.Session.Store))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Flow.MidFlowTimeout <= 0 || c.Flow.PostCompletionTimeout <= 0 {
		errs = append(errs, errors.New("flow timeouts must be positive"))
	} else if c.Flow.PostCompletionTimeout < c.Flow.MidFlowTimeout {
		errs = append(errs, errors.New("flow.post_completion_timeout must not be shorter than flow.mid_flow_timeout"))
	}
	if c.Flow.DuplicateWindow < 0 {
		errs = append(errs, errors.New("flow.duplicate_window must not be negative"))
	}
	if c.Catalog.Path == "" {
		errs = append(errs, errors.New("catalog.path is required"))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}
	return errors.Join(errs...)
}

// ValidateForServe additionally requires the credentials needed to connect.
func (c *Config) ValidateForServe() error {
	err := c.Validate()
	if c.Discord.Token == "" {
		err = errors.Join(err, fmt.Errorf("discord.token is required (or set %s)", TokenEnv))
	}
	return err
}
