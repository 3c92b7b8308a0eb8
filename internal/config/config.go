package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "chargesync/libs/config"
)

// DatabaseConfig holds postgres settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"CHARGESYNC_POSTGRES_DSN"`
}

// RedisConfig holds lease backend settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"CHARGESYNC_REDIS_ADDR"`
	Password string `yaml:"password" env:"CHARGESYNC_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"CHARGESYNC_REDIS_DB"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	BatchSize       int           `yaml:"batchSize" env:"CHARGESYNC_BATCH_SIZE"`
	LeaseTTL        time.Duration `yaml:"leaseTTL" env:"CHARGESYNC_LEASE_TTL"`
	StatusRetention time.Duration `yaml:"statusRetention" env:"CHARGESYNC_STATUS_RETENTION"`
}

// PushConfig configures the inbound push server. APIKeys maps push source ID
// to the bcrypt hash of that provider's key.
type PushConfig struct {
	Port    string            `yaml:"port" env:"CHARGESYNC_PUSH_PORT"`
	APIKeys map[string]string `yaml:"apiKeys" env:"-"`
}

// NobilConfig configures the NOBIL realtime websocket feed.
type NobilConfig struct {
	SessionURL string `yaml:"sessionURL" env:"CHARGESYNC_NOBIL_SESSION_URL"`
	APIKey     string `yaml:"apiKey" env:"CHARGESYNC_NOBIL_API_KEY"`
}

// MontaConfig configures the Monta partner API feed.
type MontaConfig struct {
	APIURL       string `yaml:"apiURL" env:"CHARGESYNC_MONTA_API_URL"`
	TokenURL     string `yaml:"tokenURL" env:"CHARGESYNC_MONTA_TOKEN_URL"`
	RefreshURL   string `yaml:"refreshURL" env:"CHARGESYNC_MONTA_REFRESH_URL"`
	ClientID     string `yaml:"clientID" env:"CHARGESYNC_MONTA_CLIENT_ID"`
	ClientSecret string `yaml:"clientSecret" env:"CHARGESYNC_MONTA_CLIENT_SECRET"`
	CountryID    int    `yaml:"countryID" env:"CHARGESYNC_MONTA_COUNTRY_ID"`
}

// PushSourceConfig declares a push-only source resolving against an existing
// static source's chargepoints.
type PushSourceConfig struct {
	ID           string `yaml:"id"`
	StaticSource string `yaml:"staticSource"`
}

// SourcesConfig enables and configures the upstream feeds.
type SourcesConfig struct {
	Nobil NobilConfig        `yaml:"nobil"`
	Monta MontaConfig        `yaml:"monta"`
	Push  []PushSourceConfig `yaml:"push" env:"-"`
}

// Config defines the chargesync service configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Sync     SyncConfig     `yaml:"sync"`
	Push     PushConfig     `yaml:"push"`
	Sources  SourcesConfig  `yaml:"sources"`
}

// Load reads configuration via the shared helper and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Redis: RedisConfig{Addr: "localhost:6379"},
		Sync: SyncConfig{
			BatchSize:       100,
			LeaseTTL:        10 * time.Minute,
			StatusRetention: 30 * 24 * time.Hour,
		},
		Push: PushConfig{Port: "8090"},
	}

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return nil, errors.New("config: redis addr required")
	}
	if cfg.Sync.BatchSize <= 0 {
		return nil, errors.New("config: batch size must be positive")
	}
	if cfg.Sync.LeaseTTL <= 0 {
		return nil, errors.New("config: lease ttl must be positive")
	}
	for _, p := range cfg.Sources.Push {
		if p.ID == "" || p.StaticSource == "" {
			return nil, errors.New("config: push source requires id and staticSource")
		}
	}
	return cfg, nil
}

// PushAddress returns :port style.
func (c *Config) PushAddress() string {
	port := strings.TrimSpace(c.Push.Port)
	if port == "" {
		port = "8090"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
