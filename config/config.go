package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Server
	Port        string `env:"PORT" envDefault:"8000"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Storage
	DBPath string `env:"DB_PATH" envDefault:"data/mpesa.db"`

	// Daraja (M-Pesa)
	ConsumerKey    string        `env:"CONSUMER_KEY,required"`
	ConsumerSecret string        `env:"CONSUMER_SECRET,required"`
	Passkey        string        `env:"MPESA_PASSKEY,required"`
	ShortCode      string        `env:"MPESA_SHORTCODE,required"`
	CallbackURL    string        `env:"CALLBACK_URL,required"`
	BaseURL        string        `env:"MPESA_BASE_URL" envDefault:"https://sandbox.safaricom.co.ke"`
	MpesaTimeout   time.Duration `env:"MPESA_TIMEOUT" envDefault:"30s"`

	// Monitoring
	EnableMetrics bool   `env:"ENABLE_METRICS" envDefault:"true"`
	MetricsPort   string `env:"METRICS_PORT" envDefault:"9090"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
