package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// Per-player lock used by UpdatePlayer
	LockTTL           time.Duration
	LockWait          time.Duration
	LockRetryInterval time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:               "redis://localhost:6379",
		PoolSize:          10,
		MinIdleConns:      2,
		LockTTL:           5 * time.Second,
		LockWait:          2 * time.Second,
		LockRetryInterval: 20 * time.Millisecond,
	}
}
