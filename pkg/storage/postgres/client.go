package postgres

import (
	"context"
	"fmt"

	"copytrader/config"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type PostgresClient struct {
	DB *gorm.DB
}

func NewClient(dsn string) (*PostgresClient, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresClient{DB: db}, nil
}

// InitializeAndMigrate connects to Postgres, optionally creates the DB, applies
// the pool settings and runs AutoMigrate for every table the service owns.
func InitializeAndMigrate(cfg config.PostgresConfig, createDB bool, env string) (*PostgresClient, error) {
	if createDB {
		if err := CreateDatabase(cfg); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	client, err := NewClient(cfg.DSN(env))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := client.configurePool(cfg); err != nil {
		_ = client.Close()
		return nil, err
	}

	if err := client.AutoMigrate(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) configurePool(cfg config.PostgresConfig) error {
	db, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}

func (p *PostgresClient) AutoMigrate() error {
	if err := p.DB.AutoMigrate(&PriceRecord{}); err != nil {
		return fmt.Errorf("auto-migrate ltp table: %w", err)
	}
	if err := p.DB.AutoMigrate(&FillRecord{}); err != nil {
		return fmt.Errorf("auto-migrate fill table: %w", err)
	}
	return nil
}

func (p *PostgresClient) IsHealthy(ctx context.Context) bool {
	db, err := p.DB.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

func (p *PostgresClient) Close() error {
	db, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}
