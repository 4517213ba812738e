package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"relastore/internal/resource"
	"relastore/internal/storage"
	"relastore/internal/stream"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "relastore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err, "missing config file is not an error")

	require.Equal(t, "sqlite3", cfg.Database.Driver)
	require.Equal(t, "storage", cfg.Store.Table)
	require.Equal(t, "none", cfg.Store.Compression)
	require.Equal(t, "pipe", cfg.Store.Provider)
	require.Equal(t, "direct", cfg.Store.Extractor)
	require.Equal(t, stream.DefaultPipeBufferSize, cfg.Store.PipeBufferSize)
	require.Equal(t, "info", cfg.Log.Level)
	require.Empty(t, cfg.File)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
database:
  driver: pgx
  dsn: postgres://user:pw@localhost/files
  max_open_conns: 8
store:
  schema: archive
  table: blobs
  always_quote: true
  compression: high
  password: hunter2
  provider: file
  extractor: memory
  pipe_buffer_size: 512
log:
  level: debug
s3:
  endpoint: localhost:9000
  access_key: key
  secret_key: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, cfg.File)

	require.Equal(t, "pgx", cfg.Database.Driver)
	require.Equal(t, "postgres://user:pw@localhost/files", cfg.Database.DSN)
	require.Equal(t, 8, cfg.Database.MaxOpenConns)
	require.Equal(t, "archive", cfg.Store.Schema)
	require.Equal(t, "blobs", cfg.Store.Table)
	require.True(t, cfg.Store.AlwaysQuote)
	require.Equal(t, "high", cfg.Store.Compression)
	require.Equal(t, "hunter2", cfg.Store.Password)
	require.Equal(t, "file", cfg.Store.Provider)
	require.Equal(t, "memory", cfg.Store.Extractor)
	require.Equal(t, 512, cfg.Store.PipeBufferSize)
	require.Equal(t, "debug", cfg.Log.Level)

	s3 := cfg.S3Config()
	require.Equal(t, "localhost:9000", s3.Endpoint)
	require.Equal(t, "key", s3.AccessKey)
	require.Equal(t, "us-east-1", s3.Region, "default region kept")
}

func TestLoadExplicitMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, "store: [unterminated"))
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RELASTORE_DATABASE_DSN", "from-env.db")
	t.Setenv("RELASTORE_STORE_COMPRESSION", "low")

	cfg, err := Load(writeConfig(t, "database:\n  dsn: from-file.db\n"))
	require.NoError(t, err)
	require.Equal(t, "from-env.db", cfg.Database.DSN, "environment wins over the file")
	require.Equal(t, "low", cfg.Store.Compression)
}

func TestStoreOptions(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Database.DSN = filepath.Join(t.TempDir(), "store.db")
	cfg.Store.Compression = "medium"
	cfg.Store.Password = "secret"
	cfg.Store.Provider = "memory"
	cfg.Store.Extractor = "file"
	cfg.Store.TempDir = t.TempDir()

	logger := slog.New(slog.DiscardHandler)
	opts, err := cfg.StoreOptions(logger)
	require.NoError(t, err)

	ctx := context.Background()
	db, err := cfg.OpenDB(ctx)
	require.NoError(t, err)
	defer db.Close()

	s, err := storage.New(db, cfg.Store.Table, opts...)
	require.NoError(t, err)
	require.NoError(t, s.CreateTable(ctx))

	obj, err := s.Put(ctx, resource.Bytes{Data: []byte("configured")}, "x")
	require.NoError(t, err)
	require.True(t, obj.Compressed)
	require.True(t, obj.Encrypted)
}

func TestStoreOptionsRejectsUnknownNames(t *testing.T) {
	t.Parallel()

	for _, mutate := range []func(*Config){
		func(c *Config) { c.Database.Driver = "oracle" },
		func(c *Config) { c.Store.Compression = "extreme" },
		func(c *Config) { c.Store.Provider = "carrier-pigeon" },
		func(c *Config) { c.Store.Extractor = "magic" },
	} {
		cfg, err := Load("")
		require.NoError(t, err)
		mutate(cfg)

		_, err = cfg.StoreOptions(slog.New(slog.DiscardHandler))
		require.Error(t, err)
	}
}

func TestNormalizeDSN(t *testing.T) {
	t.Parallel()

	dsn, err := normalizeDSN(storage.MySQL, "user:pw@tcp(localhost:3306)/files")
	require.NoError(t, err)
	require.Contains(t, dsn, "parseTime=true")
	require.Contains(t, dsn, "clientFoundRows=true")

	_, err = normalizeDSN(storage.MySQL, "not a dsn")
	require.Error(t, err)

	dsn, err = normalizeDSN(storage.SQLite, "file.db")
	require.NoError(t, err)
	require.Equal(t, "file.db", dsn)
}
