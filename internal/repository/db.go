package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"vcautotrade/internal/config"
	"vcautotrade/pkg/retry"
)

// pingRetry - база может просыпаться после простоя
var pingRetry = retry.Config{
	MaxAttempts:  3,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     time.Second,
	Multiplier:   2,
}

// OpenDB открывает пул соединений и проверяет подключение
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Одноразовые процессы: небольшой пул
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := pingDB(ctx, db, pingRetry); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// pingDB проверяет соединение с повторами. Таймаут попытки не прерывает повторы,
// их прерывает только отмена ctx.
func pingDB(ctx context.Context, db *sql.DB, cfg retry.Config) error {
	cfg.RetryIf = func(error) bool { return ctx.Err() == nil }
	return retry.Do(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return db.PingContext(attemptCtx)
	}, cfg)
}
