// Package config handles driver-level configuration for the increcache CLI
// and example programs via environment variables.
//
// The core engine (pkg/incremental) takes no configuration of its own — it
// is a library, not a process, and every knob it exposes (locking, pooling)
// is a parameter a driver passes explicitly. This package configures the
// things a *driver* built on top of the core needs: whether query execution
// takes a read-lock snapshot, whether a query's dependency-set scratch slice
// is pooled, and how the on-disk input snapshot store is opened.
//
// Configuration is loaded from environment variables using LoadFromEnv()
// and should be validated with Validate() before use.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all increcache driver configuration loaded from environment
// variables.
type Config struct {
	// Snapshot settings (pkg/snapshot, badger-backed input persistence)
	Snapshot SnapshotConfig

	// Query settings (locking/pooling behavior of increxample.System)
	Query QueryConfig

	// Logging settings
	Logging LoggingConfig

	// Feature flags for optional behavior
	Features FeatureFlagsConfig
}

// SnapshotConfig controls the on-disk persistence of input values.
type SnapshotConfig struct {
	// DataDir is the default snapshot directory. Validate requires it unless
	// InMemory is set; the CLI's `snapshot save|load` commands take their
	// directory as an argument and do not read this field.
	DataDir string
	// InMemory runs the snapshot store in memory only (testing).
	InMemory bool
	// SyncWrites forces fsync after every snapshot Save.
	SyncWrites bool
}

// QueryConfig controls how increxample.System executes queries.
type QueryConfig struct {
	// LockReadonly wraps every query body in Runtime.LockReadonly, trading
	// concurrency for snapshot consistency (see spec scenarios S5/S6).
	LockReadonly bool
	// PoolEnabled controls whether a query's dependency-set scratch slice is
	// drawn from internal/pool instead of allocated fresh per query. It has
	// no effect on a goroutine's query-call stack, which is never pooled —
	// that stack lives for the goroutine's lifetime rather than being
	// created and discarded once per query.
	PoolEnabled bool
	// PoolInitialCap is the capacity a newly allocated pooled slice starts
	// with.
	PoolInitialCap int
	// PoolMaxSize limits the capacity of a slice internal/pool will retain
	// for reuse; a slice whose capacity grew past this is discarded on Put
	// instead of pooled, the same memory-leak-prevention guard the teacher's
	// pkg/pool/pool.go applies via `cap(x) > globalConfig.MaxSize`.
	PoolMaxSize int
}

// LoggingConfig holds logging settings for the CLI driver.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR; Validate rejects any other
	// value. The CLI does not vary its output by level.
	Level string
	// LogQueries makes `increcache demo` write one log line per recorded
	// increxample LogBook event (hit, miss, start, done) through log.Printf
	// once the demo has run.
	LogQueries bool
}

// FeatureFlagsConfig holds toggles for optional demo behavior.
type FeatureFlagsConfig struct {
	// CycleDebugEnabled is loaded from INCRECACHE_CYCLE_DEBUG. No CLI
	// command reads it: cycle rendering does not change with it.
	CycleDebugEnabled bool
}

// LoadFromEnv loads configuration from environment variables, applying
// sensible defaults where a variable is unset.
//
// Environment Variables:
//
//	INCRECACHE_SNAPSHOT_DATA_DIR    - default snapshot directory (default "./data")
//	INCRECACHE_SNAPSHOT_IN_MEMORY   - run the snapshot store in memory only (default false)
//	INCRECACHE_SNAPSHOT_SYNC_WRITES - fsync after every snapshot Save (default false)
//	INCRECACHE_QUERY_LOCK_READONLY    - wrap query bodies in LockReadonly (default true)
//	INCRECACHE_QUERY_POOL_ENABLED     - pool the dependency-set scratch slice (default true)
//	INCRECACHE_QUERY_POOL_INITIAL_CAP - capacity new pooled slices start with (default 8)
//	INCRECACHE_QUERY_POOL_MAX_SIZE    - max capacity Put will retain before discarding (default 64)
//	INCRECACHE_LOG_LEVEL            - DEBUG, INFO, WARN, ERROR (default "INFO")
//	INCRECACHE_LOG_QUERIES          - log query lifecycle events (default false)
//	INCRECACHE_CYCLE_DEBUG          - render cycles with query names (default true)
func LoadFromEnv() *Config {
	cfg := &Config{}

	cfg.Snapshot.DataDir = getEnv("INCRECACHE_SNAPSHOT_DATA_DIR", "./data")
	cfg.Snapshot.InMemory = getEnvBool("INCRECACHE_SNAPSHOT_IN_MEMORY", false)
	cfg.Snapshot.SyncWrites = getEnvBool("INCRECACHE_SNAPSHOT_SYNC_WRITES", false)

	cfg.Query.LockReadonly = getEnvBool("INCRECACHE_QUERY_LOCK_READONLY", true)
	cfg.Query.PoolEnabled = getEnvBool("INCRECACHE_QUERY_POOL_ENABLED", true)
	cfg.Query.PoolInitialCap = getEnvInt("INCRECACHE_QUERY_POOL_INITIAL_CAP", 8)
	cfg.Query.PoolMaxSize = getEnvInt("INCRECACHE_QUERY_POOL_MAX_SIZE", 64)

	cfg.Logging.Level = getEnv("INCRECACHE_LOG_LEVEL", "INFO")
	cfg.Logging.LogQueries = getEnvBool("INCRECACHE_LOG_QUERIES", false)

	cfg.Features.CycleDebugEnabled = getEnvBool("INCRECACHE_CYCLE_DEBUG", true)

	return cfg
}

// Validate checks the configuration for invalid values. Call it after
// LoadFromEnv and before using the Config.
func (c *Config) Validate() error {
	if c.Snapshot.DataDir == "" && !c.Snapshot.InMemory {
		return fmt.Errorf("config: snapshot data dir must be set unless running in-memory")
	}
	if c.Query.PoolInitialCap < 0 {
		return fmt.Errorf("config: query pool initial cap must be non-negative, got %d", c.Query.PoolInitialCap)
	}
	if c.Query.PoolMaxSize < 0 {
		return fmt.Errorf("config: query pool max size must be non-negative, got %d", c.Query.PoolMaxSize)
	}
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("config: invalid log level %q", c.Logging.Level)
	}
	return nil
}

// String returns a log-safe representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Snapshot: %s, LockReadonly: %v, PoolEnabled: %v, LogLevel: %s}",
		c.Snapshot.DataDir, c.Query.LockReadonly, c.Query.PoolEnabled, c.Logging.Level,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
