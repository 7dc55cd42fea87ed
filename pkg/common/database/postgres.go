package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/medisetu/platform/pkg/common/config"
	"github.com/medisetu/platform/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Pool sizing for the kv table; every request touches at most a few rows.
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

var (
	db     *gorm.DB
	dbErr  error
	dbOnce sync.Once
)

func postgresDSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.PostgresHost,
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.PostgresDB,
		cfg.PostgresPort,
		cfg.PostgresSSLMode,
	)
}

// NewPostgres opens a pooled connection and pings it within ctx.
func NewPostgres(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	conn, err := openPostgres(ctx, postgres.Open(postgresDSN(cfg)))
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres at %s:%s: %w", cfg.PostgresHost, cfg.PostgresPort, err)
	}
	logger.Log.WithFields(map[string]interface{}{
		"host":     cfg.PostgresHost,
		"database": cfg.PostgresDB,
	}).Info("Connected to PostgreSQL")
	return conn, nil
}

func openPostgres(ctx context.Context, dialector gorm.Dialector) (*gorm.DB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{DisableAutomaticPing: true})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return conn, nil
}

// GetPostgres returns the process-wide connection, opening it on first use.
func GetPostgres(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	dbOnce.Do(func() {
		db, dbErr = NewPostgres(ctx, cfg)
	})
	return db, dbErr
}

func ClosePostgres() error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
