package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Stripe struct {
		// The webhook endpoint secret comes from the STRIPE_WEBHOOK_SECRET env
		// variable, never from the yaml file.
		ToleranceSeconds int `yaml:"tolerance_seconds"`
	} `yaml:"stripe"`
	Pricing struct {
		Tiers []PricingTier `yaml:"tiers"`
	} `yaml:"pricing"`
	Wallet struct {
		MinRechargeCents int64 `yaml:"min_recharge_cents"`
		MaxRechargeCents int64 `yaml:"max_recharge_cents"`
	} `yaml:"wallet"`
}

// PricingTier mirrors one row of the distance pricing table.
// MaxDistanceKm <= 0 marks the unbounded last tier.
type PricingTier struct {
	MaxDistanceKm float64 `yaml:"max_distance_km"`
	PriceCents    int64   `yaml:"price_cents"`
	Name          string  `yaml:"name"`
}

func LoadConfig() Config {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		log.Fatalf("Failed to unmarshal config data: %v", err)
	}

	if cfg.Stripe.ToleranceSeconds == 0 {
		cfg.Stripe.ToleranceSeconds = 300
	}
	if cfg.Wallet.MinRechargeCents == 0 {
		cfg.Wallet.MinRechargeCents = 500
	}
	if cfg.Wallet.MaxRechargeCents == 0 {
		cfg.Wallet.MaxRechargeCents = 50000
	}
	return cfg
}
