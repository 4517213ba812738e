// Package config loads the relastore application settings from defaults,
// an optional YAML file and RELASTORE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"relastore/internal/container"
	"relastore/internal/resource"
	"relastore/internal/storage"
	"relastore/internal/stream"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "RELASTORE"

type Config struct {
	Database Database `mapstructure:"database"`
	Store    Store    `mapstructure:"store"`
	Log      Log      `mapstructure:"log"`
	S3       S3       `mapstructure:"s3"`

	// File is the config file that was read, empty if none was found.
	File string `mapstructure:"-"`
}

type Database struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type Store struct {
	Schema         string `mapstructure:"schema"`
	Table          string `mapstructure:"table"`
	AlwaysQuote    bool   `mapstructure:"always_quote"`
	Compression    string `mapstructure:"compression"`
	Password       string `mapstructure:"password"`
	Provider       string `mapstructure:"provider"`
	Extractor      string `mapstructure:"extractor"`
	PipeBufferSize int    `mapstructure:"pipe_buffer_size"`
	TempDir        string `mapstructure:"temp_dir"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type S3 struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// Load reads the configuration. An explicit path must exist; an empty path
// searches ./relastore.yaml and ~/.relastore/relastore.yaml and falls back to
// defaults and environment variables when neither is present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("relastore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".relastore"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "relastore.db")
	v.SetDefault("database.max_open_conns", 0)

	v.SetDefault("store.schema", "")
	v.SetDefault("store.table", "storage")
	v.SetDefault("store.always_quote", false)
	v.SetDefault("store.compression", "none")
	v.SetDefault("store.password", "")
	v.SetDefault("store.provider", "pipe")
	v.SetDefault("store.extractor", "direct")
	v.SetDefault("store.pipe_buffer_size", stream.DefaultPipeBufferSize)
	v.SetDefault("store.temp_dir", "")

	v.SetDefault("log.level", "info")

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.use_ssl", false)
	v.SetDefault("s3.region", "us-east-1")
}

// StoreOptions translates the store section into storage options. logger
// is handed to the store and to the temp-file strategies.
func (c *Config) StoreOptions(logger *slog.Logger) ([]storage.Option, error) {
	dialect, err := storage.ParseDialect(c.Database.Driver)
	if err != nil {
		return nil, err
	}

	compression, err := container.ParseCompression(c.Store.Compression)
	if err != nil {
		return nil, err
	}

	so := stream.Options{
		PipeBufferSize: c.Store.PipeBufferSize,
		TempDir:        c.Store.TempDir,
		Logger:         logger,
	}
	provider, err := stream.ParseProvider(c.Store.Provider, so)
	if err != nil {
		return nil, err
	}
	extractor, err := stream.ParseExtractor(c.Store.Extractor, so)
	if err != nil {
		return nil, err
	}

	opts := []storage.Option{
		storage.WithDialect(dialect),
		storage.WithSchema(c.Store.Schema),
		storage.WithAlwaysQuote(c.Store.AlwaysQuote),
		storage.WithCompression(compression),
		storage.WithProvider(provider),
		storage.WithExtractor(extractor),
		storage.WithLogger(logger),
	}
	if c.Store.Password != "" {
		opts = append(opts, storage.WithPassword([]byte(c.Store.Password)))
	}
	return opts, nil
}

// S3Config returns the settings of the S3 bridge.
func (c *Config) S3Config() resource.S3Config {
	return resource.S3Config{
		Endpoint:  c.S3.Endpoint,
		AccessKey: c.S3.AccessKey,
		SecretKey: c.S3.SecretKey,
		UseSSL:    c.S3.UseSSL,
		Region:    c.S3.Region,
	}
}
