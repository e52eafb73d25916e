package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/deusflow/dailybrief/internal/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteStore keeps the translation cache and delivery log in one SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	version, err := runMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("storage ready", "driver", "sqlite", "path", path, "schema_version", version)

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) (uint, error) {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return 0, fmt.Errorf("create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("run migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("get migration version: %w", err)
	}
	return version, nil
}

// GetTranslation returns a cached translation and bumps its usage counters.
func (s *SQLiteStore) GetTranslation(ctx context.Context, lang, text string) (string, bool, error) {
	key := TranslationKey(lang, text)

	query, args, err := sq.Select("translation").
		From("translation_cache").
		Where(sq.Eq{"content_hash": key}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build select: %w", err)
	}

	var translated string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&translated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get translation: %w", err)
	}

	update, uargs, err := sq.Update("translation_cache").
		Set("last_used_at", time.Now().UTC()).
		Set("use_count", sq.Expr("use_count + 1")).
		Where(sq.Eq{"content_hash": key}).
		ToSql()
	if err == nil {
		if _, err := s.db.ExecContext(ctx, update, uargs...); err != nil {
			logger.Warn("translation cache touch failed", "error", err)
		}
	}
	return translated, true, nil
}

// PutTranslation upserts a translation.
func (s *SQLiteStore) PutTranslation(ctx context.Context, lang, text, translated, provider string) error {
	now := time.Now().UTC()
	query, args, err := sq.Insert("translation_cache").
		Columns("content_hash", "lang", "source_text", "translation", "ai_provider", "created_at", "last_used_at", "use_count").
		Values(TranslationKey(lang, text), lang, text, translated, provider, now, now, 1).
		Suffix(`ON CONFLICT (content_hash) DO UPDATE SET
			translation = excluded.translation,
			ai_provider = excluded.ai_provider,
			last_used_at = excluded.last_used_at,
			use_count = translation_cache.use_count + 1`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put translation: %w", err)
	}
	return nil
}

// WasDelivered reports whether channel already received the brief of day.
func (s *SQLiteStore) WasDelivered(ctx context.Context, day, channel string) (bool, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("delivery_log").
		Where(sq.Eq{"day": day, "channel": channel}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check delivery: %w", err)
	}
	return count > 0, nil
}

// RecordDelivery marks channel as delivered for day.
func (s *SQLiteStore) RecordDelivery(ctx context.Context, day, channel, runID string) error {
	query, args, err := sq.Insert("delivery_log").
		Columns("day", "channel", "run_id", "delivered_at").
		Values(day, channel, runID, time.Now().UTC()).
		Suffix("ON CONFLICT (day, channel) DO UPDATE SET run_id = excluded.run_id, delivered_at = excluded.delivered_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// GetStats returns row counts per table.
func (s *SQLiteStore) GetStats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int, 2)
	for _, table := range []string{"translation_cache", "delivery_log"} {
		query, args, err := sq.Select("COUNT(*)").From(table).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build count: %w", err)
		}
		var n int
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
