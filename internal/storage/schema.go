package storage

import (
	"context"
	"fmt"
)

// CreateTableSQL returns the DDL that creates the store's table if it does
// not exist yet.
func (s *Store) CreateTableSQL() string {
	c := s.cols
	t := s.cfg.Dialect.types
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s %s NOT NULL PRIMARY KEY,
	%s %s NOT NULL UNIQUE,
	%s %s NOT NULL,
	%s %s NOT NULL,
	%s %s NOT NULL,
	%s %s NOT NULL,
	%s %s NOT NULL
)`,
		s.table,
		c.uuid, t.uuid,
		c.filename, t.filename,
		c.length, t.length,
		c.modified, t.timestamp,
		c.compressed, t.flag,
		c.encrypted, t.flag,
		c.contents, t.blob,
	)
}

// CreateTable creates the store's table if it does not exist yet.
func (s *Store) CreateTable(ctx context.Context) error {
	if _, err := s.exec(ctx, s.CreateTableSQL()); err != nil {
		return fmt.Errorf("%w: create table %s: %w", ErrStorageIO, s.table, err)
	}
	return nil
}
