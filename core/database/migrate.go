package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/remindbot/core/logger"
)

// RunMigrations applies every pending up migration found in cfg.MigrationsDir.
func RunMigrations(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	return Migrate(ctx, cfg, os.DirFS(cfg.MigrationsDir))
}

// Migrate applies the up migrations of fsys (files named NNNN_name.up.sql at its root).
func Migrate(ctx context.Context, cfg Config, fsys fs.FS) error {
	cfg = cfg.withDefaults()
	if err := WaitForPostgres(ctx, cfg.DSN(), 30*time.Second); err != nil {
		migrateFailed(ctx, "db.wait", err)
		return fmt.Errorf("database not ready: %w", err)
	}

	files := upMigrations(fsys)
	preview, truncated := logger.SummarizeStrings(names(files), 6)
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "migrate.resolve",
		slog.Int("files_total", len(files)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
	)

	src, err := iofs.New(fsys, ".")
	if err != nil {
		migrateFailed(ctx, "migrate.source", err)
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		migrateFailed(ctx, "migrate.init", err)
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		migrateFailed(ctx, "migrate.apply", err)
		return fmt.Errorf("apply migrations: %w", err)
	}
	to, _, _ := m.Version()

	applied := appliedBetween(files, uint64(from), uint64(to))
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "migrate.summary",
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	if len(applied) > 0 {
		preview, truncated = logger.SummarizeStrings(names(applied), 6)
		logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "migrate.applied",
			slog.String("files_preview", preview),
			slog.Bool("files_truncated", truncated),
		)
	}
	return nil
}

func migrateFailed(ctx context.Context, event string, err error) {
	logger.LogEvent(ctx, logger.MIG, slog.LevelError, event,
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
}

type migrationFile struct {
	version uint64
	name    string
}

// upMigrations lists the up files at the root of fsys ordered by version.
func upMigrations(fsys fs.FS) []migrationFile {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil
	}
	var files []migrationFile
	for _, e := range entries {
		name := path.Base(e.Name())
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, migrationFile{version: v, name: name})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files
}

func appliedBetween(files []migrationFile, from, to uint64) []migrationFile {
	var out []migrationFile
	for _, f := range files {
		if f.version > from && f.version <= to {
			out = append(out, f)
		}
	}
	return out
}

func names(files []migrationFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.name
	}
	return out
}
