package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/clock"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/random"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/notify"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/auth"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/catalog"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/limiter"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/rating"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/scoring"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/stamina"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/world"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage/memory"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage/postgres"
	redisstorage "github.com/YinMo19/Arcaea-server-rs-sub001/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Reference data
	Catalog *catalog.Service

	// Notifier pushes progression events to open player streams
	Notifier *notify.Notifier

	// Services
	LimiterService *limiter.Service
	StaminaService *stamina.Service
	AuthService    *auth.Service
	ScoringService *scoring.Service
	RatingService  *rating.Service
	WorldService   *world.Service
}

// Services holds per-service configuration. Zero values fall back to each
// service's defaults.
type Services struct {
	Auth    auth.Config
	Limiter limiter.Config
	Stamina stamina.Config
	Scoring scoring.Config
	Rating  rating.Config
}

// DefaultServices returns the default configuration of every service
func DefaultServices() Services {
	return Services{
		Auth:    auth.DefaultConfig(),
		Limiter: limiter.DefaultConfig(),
		Stamina: stamina.DefaultConfig(),
		Scoring: scoring.DefaultConfig(),
		Rating:  rating.DefaultConfig(),
	}
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *postgres.Config
	// CatalogDir overrides the embedded chart and map catalog (optional)
	CatalogDir string
	Services   Services
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	cat := catalog.New()
	if cfg.CatalogDir != "" {
		if err := cat.LoadFromDir(cfg.CatalogDir); err != nil {
			return nil, fmt.Errorf("load catalog from %s: %w", cfg.CatalogDir, err)
		}
	} else if err := cat.LoadBuiltin(); err != nil {
		return nil, fmt.Errorf("load builtin catalog: %w", err)
	}

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("application configured",
		slog.String("storage", storageTypeOrDefault(cfg.StorageType)),
		slog.Int("charts", cat.ChartCount()),
		slog.Int("maps", len(cat.Maps())),
	)

	return newWithDependencies(store, cat, clock.New(), random.New(), cfg.Services, logger), nil
}

func storageTypeOrDefault(t string) string {
	if t == "" {
		return StorageTypeMemory
	}
	return t
}

func newStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	switch storageTypeOrDefault(cfg.StorageType) {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		return postgres.New(ctx, *cfg.PostgresConfig)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, cat *catalog.Service, clk clock.Clock, rnd random.Random, svc Services, logger *slog.Logger) *App {
	limiterService := limiter.New(store, clk, rnd, svc.Limiter, logger)
	staminaService := stamina.New(store, clk, svc.Stamina, logger)
	authService := auth.New(store, limiterService, staminaService, clk, rnd, svc.Auth, logger)
	scoringService := scoring.New(store, cat, clk, rnd, svc.Scoring, logger)
	ratingService := rating.New(store, clk, svc.Rating, logger)
	worldService := world.New(store, cat, staminaService, clk, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Catalog:        cat,
		LimiterService: limiterService,
		StaminaService: staminaService,
		AuthService:    authService,
		ScoringService: scoringService,
		RatingService:  ratingService,
		WorldService:   worldService,
		Notifier:       notify.New(logger),
	}
}

// Close ends open notification streams and releases the storage backend
func (a *App) Close() error {
	return errors.Join(a.Notifier.Close(), a.Storage.Close())
}
