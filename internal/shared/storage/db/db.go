package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx as database/sql driver

	"tender-evaluator/internal/shared/telemetry"
)

// Options tunes the pool for one process role.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// Profile names a process role with its own pool shape.
type Profile string

const (
	ProfileAPI     Profile = "api"
	ProfileWorker  Profile = "worker"
	ProfileLambda  Profile = "lambda"
	ProfileMigrate Profile = "migrate"
)

// The API holds sessions and audit reads; the worker only inserts events;
// every warm Lambda instance holds its own pool against the same database.
var profiles = map[Profile]Options{
	ProfileAPI:     {MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
	ProfileWorker:  {MaxOpenConns: 4, MaxIdleConns: 2, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
	ProfileLambda:  {MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: 15 * time.Minute, ConnMaxIdleTime: 30 * time.Second, PingTimeout: 3 * time.Second},
	ProfileMigrate: {MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 2 * time.Minute, PingTimeout: 5 * time.Second},
}

var openDB = sql.Open

var ErrNoDatabaseURL = errors.New("DATABASE_URL is empty")

// OptionsFor returns the profile defaults with DB_* environment overrides
// applied. Unknown profiles fall back to the API pool.
func OptionsFor(p Profile) Options {
	opts, ok := profiles[p]
	if !ok {
		opts = profiles[ProfileAPI]
	}
	envInt("DB_MAX_OPEN_CONNS", &opts.MaxOpenConns)
	envInt("DB_MAX_IDLE_CONNS", &opts.MaxIdleConns)
	envDuration("DB_CONN_MAX_LIFETIME", &opts.ConnMaxLifetime)
	envDuration("DB_CONN_MAX_IDLE_TIME", &opts.ConnMaxIdleTime)
	envDuration("DB_PING_TIMEOUT", &opts.PingTimeout)
	return opts
}

// Connect opens the pool and pings it once. Callers share the result.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, ErrNoDatabaseURL
	}
	pool, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool.SetMaxOpenConns(orDefault(opts.MaxOpenConns, 10))
	pool.SetMaxIdleConns(orDefault(opts.MaxIdleConns, 5))
	pool.SetConnMaxLifetime(orDefault(opts.ConnMaxLifetime, time.Hour))
	if opts.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, orDefault(opts.PingTimeout, 5*time.Second))
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	telemetry.Info("db.connected", PoolStats(pool))
	return pool, nil
}

// ConnectWithRetry retries Connect with doubling backoff. It gives up early
// when ctx ends or the URL is missing.
func ConnectWithRetry(ctx context.Context, databaseURL string, opts Options, attempts int, backoff time.Duration) (*sql.DB, error) {
	attempts = max(attempts, 1)
	var lastErr error
	for i := 1; i <= attempts; i++ {
		pool, err := Connect(ctx, databaseURL, opts)
		if err == nil {
			return pool, nil
		}
		if errors.Is(err, ErrNoDatabaseURL) {
			return nil, err
		}
		lastErr = err
		if i == attempts {
			break
		}
		telemetry.Warn("db.connect.retry", map[string]any{
			"attempt":    i,
			"attempts":   attempts,
			"backoff_ms": backoff.Milliseconds(),
			"error":      err.Error(),
		})
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("connect after %d attempts: %w", attempts, lastErr)
}

// PoolStats flattens sql.DBStats into log and health fields.
func PoolStats(pool *sql.DB) map[string]any {
	s := pool.Stats()
	return map[string]any{
		"open":          s.OpenConnections,
		"in_use":        s.InUse,
		"idle":          s.Idle,
		"wait_count":    s.WaitCount,
		"wait_ms":       s.WaitDuration.Milliseconds(),
		"max_open":      s.MaxOpenConnections,
		"closed_idle":   s.MaxIdleClosed + s.MaxIdleTimeClosed,
		"closed_maxage": s.MaxLifetimeClosed,
	}
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func envInt(key string, dst *int) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("db.env.invalid", map[string]any{"key": key, "value": raw})
		return
	}
	*dst = v
}

func envDuration(key string, dst *time.Duration) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("db.env.invalid", map[string]any{"key": key, "value": raw})
		return
	}
	*dst = v
}
