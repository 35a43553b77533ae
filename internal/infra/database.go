package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerInfo describes the database a pool is connected to.
type ServerInfo struct {
	Version  string
	Database string
	Latency  time.Duration
}

// NewPostgresPool configures a PostgreSQL connection pool and fails unless
// the server answers a ping.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// DescribePostgres reports the server version and current database.
func DescribePostgres(ctx context.Context, pool *pgxpool.Pool) (ServerInfo, error) {
	start := time.Now()
	var info ServerInfo
	if err := pool.QueryRow(ctx, `SELECT version(), current_database()`).Scan(&info.Version, &info.Database); err != nil {
		return ServerInfo{}, fmt.Errorf("describe postgres: %w", err)
	}
	info.Latency = time.Since(start)
	return info, nil
}

// LogPostgres logs the startup connectivity check. Failure to describe the
// server is only a warning since the pool already answered a ping.
func LogPostgres(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) {
	info, err := DescribePostgres(ctx, pool)
	if err != nil {
		logger.Warn("database connected, version unavailable", slog.Any("error", err))
		return
	}
	logger.Info("database connection successful",
		slog.String("version", info.Version),
		slog.String("database", info.Database),
		slog.Duration("took", info.Latency))
}
