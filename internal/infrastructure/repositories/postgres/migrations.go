package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Migration is one forward schema step. Steps run in order inside a transaction each.
type Migration struct {
	Version    int
	Statements []string
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS profiles (
					id         text PRIMARY KEY,
					email      text NOT NULL DEFAULT '',
					name       text NOT NULL DEFAULT '',
					role       text NOT NULL DEFAULT 'student' CHECK (role IN ('student', 'admin')),
					created_at timestamptz NOT NULL DEFAULT now()
				)`,
				`CREATE TABLE IF NOT EXISTS courses (
					id            text PRIMARY KEY,
					title         text NOT NULL,
					description   text NOT NULL DEFAULT '',
					thumbnail_url text NOT NULL DEFAULT '',
					is_published  boolean NOT NULL DEFAULT false,
					created_at    timestamptz NOT NULL DEFAULT now()
				)`,
				`CREATE TABLE IF NOT EXISTS videos (
					id                 text PRIMARY KEY,
					course_id          text NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
					title              text NOT NULL,
					description        text NOT NULL DEFAULT '',
					content_ref        text NOT NULL DEFAULT '',
					thumbnail_url      text NOT NULL DEFAULT '',
					duration_seconds   integer NOT NULL DEFAULT 0,
					order_index        integer NOT NULL DEFAULT 0,
					require_signed_url boolean NOT NULL DEFAULT true,
					created_at         timestamptz NOT NULL DEFAULT now()
				)`,
				`CREATE INDEX IF NOT EXISTS videos_course_id_idx ON videos (course_id, order_index)`,
				`CREATE TABLE IF NOT EXISTS enrollments (
					id          text PRIMARY KEY,
					user_id     text NOT NULL,
					course_id   text NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
					enrolled_at timestamptz NOT NULL DEFAULT now(),
					expires_at  timestamptz
				)`,
				`CREATE INDEX IF NOT EXISTS enrollments_user_course_idx ON enrollments (user_id, course_id)`,
				`CREATE TABLE IF NOT EXISTS watch_history (
					user_id          text NOT NULL,
					video_id         text NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
					progress_seconds integer NOT NULL DEFAULT 0,
					is_completed     boolean NOT NULL DEFAULT false,
					last_watched_at  timestamptz NOT NULL DEFAULT now(),
					PRIMARY KEY (user_id, video_id)
				)`,
			},
		},
	}
}

// Migrate applies every migration newer than the recorded schema version.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.SugaredLogger) error {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    integer PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	migrations := getMigrations()
	target := migrations[len(migrations)-1].Version
	if current >= target {
		logger.Infow("schema is up to date", "current_version", current, "target_version", target)
		return nil
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}
		logger.Infow("running migration", "version", migration.Version)
		if err := applyMigration(ctx, pool, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
	}

	logger.Infow("migrations completed", "version", target)
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, migration Migration) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, stmt := range migration.Statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, migration.Version)
		return err
	})
}
