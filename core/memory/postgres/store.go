// Package postgres stores memories in PostgreSQL and searches them with the
// built-in full-text search.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/memory"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and migrates the schema to the latest version.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fault.New(fault.KindInitialization, "memory store", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fault.New(fault.KindInitialization, "memory store", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fault.New(fault.KindInitialization, "memory migrations", err)
	}
	return &Store{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, result := range results {
		logger.Info("applied migration", "version", result.Source.Version, "duration", result.Duration)
	}
	return nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Add(ctx context.Context, entry memory.Entry) error {
	ctx, span := tracer.Start(ctx, "add memory")
	defer span.End()

	entry, err := memory.Normalize(entry)
	if err != nil {
		return err
	}
	tags := entry.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO memories (id, user_id, session_id, kind, content, tags, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.SessionID, entry.Kind, entry.Text, tags, entry.CreatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert memory")
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, userID, query string, limit int) ([]memory.Entry, error) {
	ctx, span := tracer.Start(ctx, "search memories")
	defer span.End()

	if limit <= 0 {
		limit = memory.DefaultSearchLimit
	}

	var (
		rows pgx.Rows
		err  error
	)
	if query == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id, user_id, session_id, kind, content, tags, created_at
			 FROM memories WHERE user_id = $1
			 ORDER BY created_at DESC LIMIT $2`,
			userID, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, user_id, session_id, kind, content, tags, created_at
			 FROM memories
			 WHERE user_id = $1 AND search @@ plainto_tsquery('english', $2)
			 ORDER BY ts_rank(search, plainto_tsquery('english', $2)) DESC, created_at DESC
			 LIMIT $3`,
			userID, query, limit)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query memories")
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Entry, error) {
		var entry memory.Entry
		err := row.Scan(&entry.ID, &entry.UserID, &entry.SessionID, &entry.Kind, &entry.Text, &entry.Tags, &entry.CreatedAt)
		return entry, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read memories")
		return nil, fmt.Errorf("failed to read memories: %w", err)
	}
	span.SetAttributes(attribute.Int("memories.found", len(entries)))
	return entries, nil
}

func (s *Store) Prune(ctx context.Context, userID string, olderThan time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "prune memories")
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM memories WHERE user_id = $1 AND created_at < $2`, userID, olderThan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to prune memories")
		return 0, fmt.Errorf("failed to prune memories: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "clear memories")
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE user_id = $1`, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to clear memories")
		return fmt.Errorf("failed to clear memories: %w", err)
	}
	return nil
}
