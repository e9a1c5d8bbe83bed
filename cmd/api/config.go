package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime settings, read from KEYFLOW_* environment
// variables.
type Config struct {
	Addr     string `envconfig:"ADDR" default:":8443"`
	CertFile string `envconfig:"CERT_FILE"`
	KeyFile  string `envconfig:"KEY_FILE"`
	LogFile  string `envconfig:"LOG_FILE"`

	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	OtelHost string `envconfig:"OTEL_HOST"`

	SeedSecret   string `envconfig:"SEED_SECRET" required:"true"`
	SeedWeekly   int    `envconfig:"SEED_WEEKLY" default:"50"`
	SeedMonthly  int    `envconfig:"SEED_MONTHLY" default:"30"`
	SeedLifetime int    `envconfig:"SEED_LIFETIME" default:"10"`

	PaymentURL     string        `envconfig:"PAYMENT_URL" required:"true"`
	PaymentAPIKey  string        `envconfig:"PAYMENT_API_KEY"`
	PaymentTimeout time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10s"`

	EmailEndpoint string `envconfig:"EMAIL_ENDPOINT"`
	EmailAPIKey   string `envconfig:"EMAIL_API_KEY"`
	EmailFrom     string `envconfig:"EMAIL_FROM" default:"keys@shadowscript.example"`
	OperatorEmail string `envconfig:"OPERATOR_EMAIL"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("KEYFLOW", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
