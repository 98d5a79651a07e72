package config

import (
	"context"
	"fmt"
	"time"
)

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// FlushInterval controls how often the price map is written to ltp_record.
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// DSN builds the connection string. In prod the host and credentials come
// from SSM Parameter Store instead of the config file.
func (cfg *PostgresConfig) DSN(env string) string {
	host, user, password := cfg.Host, cfg.User, cfg.Password
	if env == "prod" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store := NewParameterStore()
		host = store.Value(ctx, "COPYTRADER_DB_HOST", true)
		user = store.Value(ctx, "COPYTRADER_DB_USER", true)
		password = store.Value(ctx, "COPYTRADER_DB_PASSWORD", true)
	}
	return cfg.dsn(host, user, password, cfg.DBName)
}

// ServerDSN points at the maintenance "postgres" database, used to create DBName.
func (cfg *PostgresConfig) ServerDSN() string {
	return cfg.dsn(cfg.Host, cfg.User, cfg.Password, "postgres")
}

func (cfg *PostgresConfig) dsn(host, user, password, dbname string) string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbname, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn
}
