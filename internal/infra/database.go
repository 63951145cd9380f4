package infra

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"papertrade/internal/database"
	"papertrade/internal/domain"
	"papertrade/internal/repository"
	"papertrade/internal/repository/memory"
)

// NewDatabase creates a new database connection pool with optimized settings
func NewDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	log.Println("Connecting to PostgreSQL database...")

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Each trade holds one connection for its row lock, so the pool size
	// bounds how many users can trade at once.
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("[OK] Database connected successfully")
	return pool, nil
}

// OpenStore returns a Postgres-backed store with migrations applied, or an
// in-memory store when databaseURL is empty
func OpenStore(ctx context.Context, databaseURL string) (domain.Store, error) {
	if databaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set, using in-memory store (data is lost on restart)")
		return memory.NewStore(), nil
	}

	pool, err := NewDatabase(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repository.NewPostgresStore(pool), nil
}
