package storage

import (
	"log/slog"
	"relastore/internal/container"
	"relastore/internal/stream"
	"time"
)

// Config holds the settings of a Store.
type Config struct {
	Dialect     Dialect
	Schema      string
	AlwaysQuote bool
	Compression container.Compression
	Password    []byte
	Provider    stream.Provider
	Extractor   stream.Extractor
	Logger      *slog.Logger
	Now         func() time.Time
}

type Option func(*Config)

func WithDialect(d Dialect) Option {
	return func(cfg *Config) {
		cfg.Dialect = d
	}
}

func WithSchema(schema string) Option {
	return func(cfg *Config) {
		cfg.Schema = schema
	}
}

// WithAlwaysQuote quotes every identifier, even simple ones.
func WithAlwaysQuote(always bool) Option {
	return func(cfg *Config) {
		cfg.AlwaysQuote = always
	}
}

func WithCompression(c container.Compression) Option {
	return func(cfg *Config) {
		cfg.Compression = c
	}
}

// WithPassword seals new content with a key derived from password and is
// required to read sealed content back.
func WithPassword(password []byte) Option {
	return func(cfg *Config) {
		cfg.Password = append([]byte(nil), password...)
	}
}

func WithProvider(p stream.Provider) Option {
	return func(cfg *Config) {
		cfg.Provider = p
	}
}

func WithExtractor(e stream.Extractor) Option {
	return func(cfg *Config) {
		cfg.Extractor = e
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = logger
	}
}

// WithClock overrides the time source used when a resource reports no
// modification time.
func WithClock(now func() time.Time) Option {
	return func(cfg *Config) {
		cfg.Now = now
	}
}

func NewConfig(opts ...Option) Config {
	cfg := Config{
		Dialect:   SQLite,
		Provider:  stream.PipeProvider{BufferSize: stream.DefaultPipeBufferSize},
		Extractor: stream.DirectExtractor{},
		Logger:    slog.Default(),
		Now:       time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
