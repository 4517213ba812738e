package config

import (
	"context"
	"database/sql"
	"fmt"
	"relastore/internal/storage"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// OpenDB opens and pings the configured database.
func (c *Config) OpenDB(ctx context.Context) (*sql.DB, error) {
	dialect, err := storage.ParseDialect(c.Database.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := normalizeDSN(dialect, c.Database.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect.Name, err)
	}
	switch {
	case c.Database.MaxOpenConns > 0:
		db.SetMaxOpenConns(c.Database.MaxOpenConns)
	case dialect.Name == storage.SQLite.Name:
		// A SQLite file takes one writer at a time.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s database: %w", dialect.Name, err)
	}
	return db, nil
}

// normalizeDSN forces the MySQL driver settings the store depends on.
func normalizeDSN(dialect storage.Dialect, dsn string) (string, error) {
	if dialect.Name != storage.MySQL.Name {
		return dsn, nil
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}
