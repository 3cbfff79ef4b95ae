// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config はアプリケーション設定を表す。
type Config struct {
	MongoURI            string        `env:"MONGODB_URI,required" validate:"required,startswith=mongodb"`
	DatabaseName        string        `env:"MONGODB_DATABASE,required" validate:"required,excludesall=/.$"`
	VersionCollection   string        `env:"MIGRATION_VERSION_COLLECTION" envDefault:"DatabaseVersion" validate:"required"`
	IncludeExperimental bool          `env:"MIGRATION_INCLUDE_EXPERIMENTAL" envDefault:"false"`
	ConnectTimeout      time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	Port     string `env:"PORT" envDefault:"8080" validate:"required,numeric"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	// LogFile が設定されている場合は標準出力に加えてローテーションするファイルにも出力する。
	LogFile      string `env:"LOG_FILE"`
	LogMaxSizeMB int    `env:"LOG_MAX_SIZE_MB" envDefault:"100" validate:"gt=0"`

	GoogleCloudProject string  `env:"GOOGLE_CLOUD_PROJECT"`
	OtelEnabled        bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OtelEndpoint       string  `env:"OTEL_ENDPOINT" validate:"required_if=OtelEnabled true"`
	OtelServiceName    string  `env:"OTEL_SERVICE_NAME" envDefault:"mongo-migrations"`
	OtelSamplingRate   float64 `env:"OTEL_SAMPLING_RATE" envDefault:"1.0" validate:"gte=0,lte=1"`
}

// Load は.envファイルと環境変数から設定を読み込み、検証する。
// 既に設定されている環境変数は.envの値より優先される。
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SlogLevel はLogLevelをslog.Levelに変換する。
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Servers は接続先URIからホスト部分を取り出す。認証情報は含めない。
func (c *Config) Servers() []string {
	uri := c.MongoURI
	if i := strings.Index(uri, "://"); i >= 0 {
		uri = uri[i+3:]
	}
	if i := strings.LastIndex(uri, "@"); i >= 0 {
		uri = uri[i+1:]
	}
	if i := strings.IndexAny(uri, "/?"); i >= 0 {
		uri = uri[:i]
	}
	if uri == "" {
		return nil
	}
	return strings.Split(uri, ",")
}
