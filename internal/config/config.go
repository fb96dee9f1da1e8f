package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath はCONFIG_PATH未指定時に参照する設定ファイル。
const DefaultConfigPath = "./flextime.yaml"

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。優先順位は 環境変数 > YAML > デフォルト値。
type Config struct {
	// Server
	ServerPort string `yaml:"server_port" env:"SERVER_PORT" env-default:"8090"`

	// Remote Resource API
	RemoteBaseURL        string        `yaml:"remote_base_url"         env:"REMOTE_BASE_URL"         env-default:"http://localhost:8080/api/v1"`
	RemoteAuthHeader     string        `yaml:"remote_auth_header"      env:"REMOTE_AUTH_HEADER"`
	RemoteUserID         int64         `yaml:"remote_user_id"          env:"REMOTE_USER_ID"          env-default:"1"`
	RemoteTimeout        time.Duration `yaml:"remote_timeout"          env:"REMOTE_TIMEOUT"          env-default:"10s"`
	RemoteRateLimit      float64       `yaml:"remote_rate_limit"       env:"REMOTE_RATE_LIMIT"       env-default:"10"`
	RemoteRateBurst      int           `yaml:"remote_rate_burst"       env:"REMOTE_RATE_BURST"       env-default:"20"`
	RemoteLegacyLocation bool          `yaml:"remote_legacy_location"  env:"REMOTE_LEGACY_LOCATION_FIELD" env-default:"true"`

	// Identity Provider
	IdentityProvider string `yaml:"identity_provider" env:"IDENTITY_PROVIDER" env-default:"password"`
	IdentityAPIKey   string `yaml:"identity_api_key"  env:"IDENTITY_API_KEY"`
	IdentityBaseURL  string `yaml:"identity_base_url" env:"IDENTITY_BASE_URL"`

	// Blob Store
	BlobStore    string `yaml:"blob_store"     env:"BLOB_STORE"     env-default:"file"`
	BlobFilePath string `yaml:"blob_file_path" env:"BLOB_FILE_PATH" env-default:"./.flextime/state.json"`
	DatabaseURL  string `yaml:"database_url"   env:"DATABASE_URL"`

	// Cache
	CacheMaxEntries int `yaml:"cache_max_entries" env:"CACHE_MAX_ENTRIES" env-default:"256"`

	// Logging
	LogLevel  string `yaml:"log_level"  env:"LOG_LEVEL"  env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`

	// CORS
	CORSAllowedOrigin string `yaml:"cors_allowed_origin" env:"CORS_ALLOWED_ORIGIN" env-default:"http://localhost:8081"`
}

const (
	IdentityPassword = "password"
	IdentityLocal    = "local"

	BlobFile     = "file"
	BlobPostgres = "postgres"
	BlobMemory   = "memory"
)

// Load はYAMLファイルと環境変数からConfigを読み込む。
// CONFIG_PATHが明示的に指定されてファイルが存在しない場合はエラーを返す。
// 未指定でデフォルトのファイルもない場合は環境変数とデフォルト値のみを使用する。
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate は値の組み合わせを検証する。
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.RemoteBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("REMOTE_BASE_URL must be an absolute URL (got %q)", c.RemoteBaseURL))
	}
	if c.RemoteUserID <= 0 {
		errs = append(errs, fmt.Errorf("REMOTE_USER_ID must be > 0 (got %d)", c.RemoteUserID))
	}
	if c.RemoteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REMOTE_TIMEOUT must be > 0 (got %v)", c.RemoteTimeout))
	}
	if c.RemoteRateLimit < 0 {
		errs = append(errs, fmt.Errorf("REMOTE_RATE_LIMIT must be >= 0 (got %v)", c.RemoteRateLimit))
	}

	switch c.IdentityProvider {
	case IdentityPassword:
		if c.IdentityAPIKey == "" {
			errs = append(errs, errors.New("IDENTITY_API_KEY is required when IDENTITY_PROVIDER=password"))
		}
	case IdentityLocal:
	default:
		errs = append(errs, fmt.Errorf("IDENTITY_PROVIDER must be %q or %q (got %q)", IdentityPassword, IdentityLocal, c.IdentityProvider))
	}

	switch c.BlobStore {
	case BlobFile:
		if strings.TrimSpace(c.BlobFilePath) == "" {
			errs = append(errs, errors.New("BLOB_FILE_PATH is required when BLOB_STORE=file"))
		}
	case BlobPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when BLOB_STORE=postgres"))
		}
	case BlobMemory:
	default:
		errs = append(errs, fmt.Errorf("BLOB_STORE must be one of file, postgres, memory (got %q)", c.BlobStore))
	}

	if c.CacheMaxEntries < 1 {
		errs = append(errs, fmt.Errorf("CACHE_MAX_ENTRIES must be >= 1 (got %d)", c.CacheMaxEntries))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text (got %q)", c.LogFormat))
	}

	return errors.Join(errs...)
}
