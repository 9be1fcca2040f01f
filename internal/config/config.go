// Package config loads application configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/campaigner/internal/gmail"
)

// Config is the full application configuration.
type Config struct {
	HTTP      HTTPConfig
	Mongo     MongoConfig
	Gmail     gmail.Config
	Vault     VaultConfig
	Quota     QuotaConfig
	Scheduler SchedulerConfig
	Auth      AuthConfig

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// MongoConfig configures the document store connection.
type MongoConfig struct {
	URI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DB" envDefault:"campaigner"`
}

// VaultConfig carries the credential encryption key material.
type VaultConfig struct {
	// EncryptionKey is a 32-byte key, hex or base64 encoded. Missing or
	// malformed key material is fatal at startup.
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`
}

// QuotaConfig configures the daily send cap.
type QuotaConfig struct {
	DailyLimit int    `env:"QUOTA_DAILY_LIMIT" envDefault:"350"`
	Timezone   string `env:"QUOTA_TIMEZONE" envDefault:"Local"`
}

// Location resolves the timezone that anchors the daily quota window.
func (c QuotaConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// SchedulerConfig configures the delivery sweep.
type SchedulerConfig struct {
	Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"60s"`
	Batch    int           `env:"SCHEDULER_BATCH" envDefault:"20"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET,required"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
