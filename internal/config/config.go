package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/factory"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/auth"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/limiter"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/rating"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/scoring"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/stamina"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds all server configuration parsed from environment variables.
type Config struct {
	// Server
	HTTPHost string `env:"HTTP_HOST"`
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AdminKey string `env:"ADMIN_KEY"`

	// Storage
	StorageType string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	DatabaseURL string `env:"DATABASE_URL"`

	// CatalogDir overrides the embedded charts.json and maps.json when set
	CatalogDir string `env:"CATALOG_DIR"`

	PruneInterval time.Duration `env:"PRUNE_INTERVAL" envDefault:"1h"`

	// Sessions and anti-abuse
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	LoginDeviceWindow    time.Duration `env:"LOGIN_DEVICE_WINDOW" envDefault:"24h"`
	LoginDeviceLimit     int           `env:"LOGIN_DEVICE_LIMIT" envDefault:"1"`
	AutoBanMultiDevice   bool          `env:"AUTO_BAN_MULTI_DEVICE" envDefault:"false"`
	RegisterWindow       time.Duration `env:"REGISTER_WINDOW" envDefault:"24h"`
	RegisterDeviceLimit  int           `env:"REGISTER_DEVICE_LIMIT" envDefault:"1"`
	RegisterAddressLimit int           `env:"REGISTER_ADDRESS_LIMIT" envDefault:"3"`
	BanDurationsDays     []int         `env:"BAN_DURATIONS_DAYS" envDefault:"1,3,7,15,31" envSeparator:","`

	// Stamina
	MaxStamina         int           `env:"MAX_STAMINA" envDefault:"12"`
	StaminaRecoverTick time.Duration `env:"STAMINA_RECOVER_TICK" envDefault:"30m"`
	BonusRecoverTick   time.Duration `env:"BONUS_RECOVER_TICK" envDefault:"23h"`
	BonusStaminaAmount int           `env:"BONUS_STAMINA_AMOUNT" envDefault:"6"`

	// Rating
	BestCapacity       int     `env:"BEST_CAPACITY" envDefault:"30"`
	RecentCapacity     int     `env:"RECENT_CAPACITY" envDefault:"30"`
	RecentConsidered   int     `env:"RECENT_CONSIDERED" envDefault:"10"`
	RatingWeightBest   float64 `env:"RATING_WEIGHT_BEST" envDefault:"0.025"`
	RatingWeightRecent float64 `env:"RATING_WEIGHT_RECENT" envDefault:"0.025"`
}

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env parsing alone cannot reject.
func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageMemory, StorageRedis:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_TYPE=%s", StoragePostgres)
		}
	default:
		return fmt.Errorf("invalid STORAGE_TYPE %q: must be memory, redis or postgres", c.StorageType)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTPPort)
	}
	if c.MaxStamina <= 0 || c.StaminaRecoverTick <= 0 || c.BonusRecoverTick <= 0 {
		return fmt.Errorf("stamina settings must be positive")
	}
	if c.BestCapacity <= 0 || c.RecentCapacity <= 0 || c.RecentConsidered <= 0 {
		return fmt.Errorf("rating capacities must be positive")
	}
	if c.RecentConsidered > c.RecentCapacity {
		return fmt.Errorf("RECENT_CONSIDERED (%d) exceeds RECENT_CAPACITY (%d)", c.RecentConsidered, c.RecentCapacity)
	}
	for _, d := range c.BanDurationsDays {
		if d <= 0 {
			return fmt.Errorf("BAN_DURATIONS_DAYS entries must be positive")
		}
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LOG_LEVEL (debug, info, warn, error).
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Services maps the tunables onto every service configuration.
func (c *Config) Services() factory.Services {
	return factory.Services{
		Auth:    c.Auth(),
		Limiter: c.Limiter(),
		Stamina: c.Stamina(),
		Scoring: c.Scoring(),
		Rating:  c.Rating(),
	}
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

func (c *Config) Auth() auth.Config {
	bans := make([]time.Duration, len(c.BanDurationsDays))
	for i, d := range c.BanDurationsDays {
		bans[i] = time.Duration(d) * 24 * time.Hour
	}
	return auth.Config{
		SessionDuration:      c.SessionTTL,
		LoginDeviceWindow:    c.LoginDeviceWindow,
		LoginDeviceLimit:     c.LoginDeviceLimit,
		AutoBanMultiDevice:   c.AutoBanMultiDevice,
		RegisterWindow:       c.RegisterWindow,
		RegisterDeviceLimit:  c.RegisterDeviceLimit,
		RegisterAddressLimit: c.RegisterAddressLimit,
		BanDurations:         bans,
	}
}

// Limiter keeps events for the widest window consulted by auth.
func (c *Config) Limiter() limiter.Config {
	retention := c.LoginDeviceWindow
	if c.RegisterWindow > retention {
		retention = c.RegisterWindow
	}
	return limiter.Config{Retention: retention}
}

func (c *Config) Stamina() stamina.Config {
	return stamina.Config{
		Max:         c.MaxStamina,
		RecoverTick: c.StaminaRecoverTick,
		BonusTick:   c.BonusRecoverTick,
		BonusAmount: c.BonusStaminaAmount,
	}
}

func (c *Config) Scoring() scoring.Config {
	return scoring.Config{RecentCapacity: c.RecentCapacity}
}

func (c *Config) Rating() rating.Config {
	return rating.Config{
		BestCount:    c.BestCapacity,
		RecentCount:  c.RecentConsidered,
		BestWeight:   c.RatingWeightBest,
		RecentWeight: c.RatingWeightRecent,
	}
}
