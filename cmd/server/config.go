package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime settings for the server.
//
// Defaults are intentionally explicit because the shared secret and
// token windows are security-sensitive and should remain predictable
// in local and CI environments.
type Config struct {
	Addr     string `env:"TANOD_ADDR" envDefault:":8080"`
	BasePath string `env:"TANOD_BASE_PATH" envDefault:"/api/auth"`

	// Secret is the pre-shared key downstream services verify
	// assertions with. Required, minimum 32 characters.
	Secret string `env:"TANOD_SECRET,required"`

	// Storage selects the backend: memory, postgres, or mongo.
	Storage     string `env:"TANOD_STORAGE" envDefault:"memory"`
	DatabaseURL string `env:"TANOD_DATABASE_URL"`
	MongoURL    string `env:"TANOD_MONGO_URL"`
	MongoDB     string `env:"TANOD_MONGO_DB" envDefault:"tanod"`

	SessionTTL      time.Duration `env:"TANOD_SESSION_TTL" envDefault:"24h"`
	VerificationTTL time.Duration `env:"TANOD_VERIFICATION_TTL" envDefault:"24h"`
	ResetTTL        time.Duration `env:"TANOD_RESET_TTL" envDefault:"1h"`

	MailFrom string `env:"TANOD_MAIL_FROM" envDefault:"noreply@localhost"`
	SiteName string `env:"TANOD_SITE_NAME" envDefault:"tanod"`

	// SMTPAddr enables real mail delivery when set; otherwise outbound
	// mail goes to the log.
	SMTPAddr     string `env:"TANOD_SMTP_ADDR"`
	SMTPUsername string `env:"TANOD_SMTP_USERNAME"`
	SMTPPassword string `env:"TANOD_SMTP_PASSWORD"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
