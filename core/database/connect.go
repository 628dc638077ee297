package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/remindbot/core/logger"
)

const driverName = "postgres"

// Connect opens a pooled connection and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	attrs := []slog.Attr{
		slog.String("driver", driverName),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}
	fail := func(event string, err error) error {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, event,
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return fmt.Errorf("%s: %w", event, err)
	}

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN())
	if err != nil {
		return nil, fail("db.connect", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fail("db.ping", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect",
		append(attrs,
			slog.Int("pool_open", cfg.MaxConnections),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)...)
	return db, nil
}

// WaitForPostgres pings dsn every two seconds until it answers or timeout passes.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(2 * time.Second)
	defer tick.Stop()
	for {
		err := ping(ctx, dsn)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-tick.C:
		}
	}
}

func ping(ctx context.Context, dsn string) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}
