// Package postgres implements the automation repositories on PostgreSQL.
// Writes go through gorm, list queries through pgx and scany.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nbenliogludev/go-browser-run-engine/internal/store/postgres/migrations"
)

// DefaultTimeout bounds every single statement.
const DefaultTimeout = 5 * time.Second

// Store bundles the repositories over one database.
type Store struct {
	ORM  *gorm.DB
	Pool *pgxpool.Pool

	Runs    *RunStore
	Results *ResultStore
	Errors  *ErrorStore
	Configs *ConfigStore
	Queries *RunQueries
}

// Open connects both the gorm handle and the pgx pool.
func Open(ctx context.Context, dsn string) (*Store, error) {
	orm, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	sqlDB, err := orm.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	pool, err := openPool(ctx, dsn)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	queries := &RunQueries{pool: pool}
	return &Store{
		ORM:     orm,
		Pool:    pool,
		Runs:    &RunStore{orm: orm, queries: queries},
		Results: &ResultStore{orm: orm},
		Errors:  &ErrorStore{orm: orm},
		Configs: &ConfigStore{orm: orm},
		Queries: queries,
	}, nil
}

func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Ping checks both connections.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	if err := s.Pool.Ping(ctx); err != nil {
		return err
	}
	sqlDB, err := s.ORM.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	s.Pool.Close()
	sqlDB, err := s.ORM.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies every pending schema version.
func Migrate(ctx context.Context, dsn string) ([]*goose.MigrationResult, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return nil, err
	}
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, nil,
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(migrations.Migrations()...),
	)
	if err != nil {
		return nil, fmt.Errorf("migration provider: %w", err)
	}
	return provider.Up(ctx)
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DefaultTimeout)
}
