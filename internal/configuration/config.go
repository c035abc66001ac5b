package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Database    DatabaseConfig `mapstructure:"database"`
	MinIO       MinIOConfig    `mapstructure:"minio"`
	Server      ServerConfig   `mapstructure:"server"`
	Links       LinksConfig    `mapstructure:"links"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Registry    string         `mapstructure:"registry" validate:"required,oneof=postgres memory"`
	NATSURL     string         `mapstructure:"nats_url"`
	KeycloakURL string         `mapstructure:"keycloak_url" validate:"required,url"`
	ClamAVURL   string         `mapstructure:"clamav_url"`
	ScanEnabled bool           `mapstructure:"scan_enabled"`
	Tracing     bool           `mapstructure:"tracing_enabled"`
}

type DatabaseConfig struct {
	Host      string `mapstructure:"host" validate:"required"`
	Port      string `mapstructure:"port" validate:"required,numeric"`
	User      string `mapstructure:"user" validate:"required"`
	Password  string `mapstructure:"password"`
	DBName    string `mapstructure:"name" validate:"required"`
	SSLMode   string `mapstructure:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	ShardURLs string `mapstructure:"shard_urls"`
}

type MinIOConfig struct {
	Endpoint   string `mapstructure:"endpoint" validate:"required"`
	AccessKey  string `mapstructure:"access_key" validate:"required"`
	SecretKey  string `mapstructure:"secret_key" validate:"required"`
	BucketName string `mapstructure:"bucket" validate:"required"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

type ServerConfig struct {
	Port          string `mapstructure:"port" validate:"required,numeric"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required,url"`
	MaxUploadMB   int64  `mapstructure:"max_upload_mb" validate:"gt=0"`
}

// LinksConfig selects the share-link store backend.
type LinksConfig struct {
	Store         string `mapstructure:"store" validate:"required,oneof=postgres sharded redis badger local"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
	BadgerPath    string `mapstructure:"badger_path"`
	LocalPath     string `mapstructure:"local_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type binding struct {
	key, env string
	def      any
}

// Environment variable names match the ones the deployment already sets.
var bindings = []binding{
	{"database.host", "DB_HOST", "localhost"},
	{"database.port", "DB_PORT", "5432"},
	{"database.user", "DB_USER", "fileuser"},
	{"database.password", "DB_PASSWORD", "filepassword"},
	{"database.name", "DB_NAME", "filemanager"},
	{"database.ssl_mode", "DB_SSL_MODE", "disable"},
	{"database.shard_urls", "DB_SHARD_URLS", ""},
	{"minio.endpoint", "MINIO_ENDPOINT", "localhost:9000"},
	{"minio.access_key", "MINIO_ACCESS_KEY", "minioadmin"},
	{"minio.secret_key", "MINIO_SECRET_KEY", "minioadmin"},
	{"minio.bucket", "MINIO_BUCKET", "files"},
	{"minio.use_ssl", "MINIO_USE_SSL", false},
	{"server.port", "SERVER_PORT", "8080"},
	{"server.public_base_url", "PUBLIC_BASE_URL", "http://localhost:8080"},
	{"server.max_upload_mb", "MAX_UPLOAD_MB", 100},
	{"links.store", "LINK_STORE", "postgres"},
	{"links.redis_addr", "REDIS_ADDR", "localhost:6379"},
	{"links.redis_password", "REDIS_PASSWORD", ""},
	{"links.redis_db", "REDIS_DB", 0},
	{"links.badger_path", "BADGER_PATH", "data/links"},
	{"links.local_path", "LOCAL_STORE_PATH", "data/share_links.json"},
	{"logging.level", "LOG_LEVEL", "info"},
	{"logging.format", "LOG_FORMAT", "json"},
	{"registry", "REGISTRY", "postgres"},
	{"nats_url", "NATS_URL", "nats://localhost:4222"},
	{"keycloak_url", "KEYCLOAK_URL", "http://localhost:8081/realms/bondbridg"},
	{"clamav_url", "CLAMAV_URL", "tcp://localhost:3310"},
	{"scan_enabled", "SCAN_ENABLED", true},
	{"tracing_enabled", "TRACING_ENABLED", false},
}

// Load reads .env (if present), an optional config file, then the environment.
// Environment wins over the file, the file wins over defaults.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", b.env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags and the backend-specific requirements.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	switch cfg.Links.Store {
	case "sharded":
		if len(cfg.Database.Shards()) == 0 {
			return errors.New("LINK_STORE=sharded requires DB_SHARD_URLS")
		}
	case "redis":
		if cfg.Links.RedisAddr == "" {
			return errors.New("LINK_STORE=redis requires REDIS_ADDR")
		}
	case "local":
		if cfg.Links.LocalPath == "" {
			return errors.New("LINK_STORE=local requires LOCAL_STORE_PATH")
		}
	}
	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// Shards splits DB_SHARD_URLS on commas.
func (c *DatabaseConfig) Shards() []string {
	var out []string
	for _, s := range strings.Split(c.ShardURLs, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (s *ServerConfig) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}
