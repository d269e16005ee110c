package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	StateTTL time.Duration `yaml:"state_ttl"` // conversation state lifetime
}

type PagHiperConfig struct {
	APIKey     string `yaml:"api_key"`
	Token      string `yaml:"token"`
	BaseURL    string `yaml:"base_url"`
	PixBaseURL string `yaml:"pix_base_url"`
}

type PaymentConfig struct {
	PagHiper PagHiperConfig `yaml:"paghiper"`

	// Burst check: short window run when the user claims "I paid".
	BurstAttempts int           `yaml:"burst_attempts"`
	BurstInterval time.Duration `yaml:"burst_interval"`
	// Slow poll: background reconciliation budget.
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type ProvisionConfig struct {
	PanelURL       string `yaml:"panel_url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	DefaultPackage int    `yaml:"default_package"`
}

type WhatsAppConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"` // e.g. whatsapp:+5511999999999
	Workers    int    `yaml:"workers"`
}

type TrialConfig struct {
	CooldownDays int `yaml:"cooldown_days"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Payment    PaymentConfig    `yaml:"payment"`
	Provision  ProvisionConfig  `yaml:"provision"`
	WhatsApp   WhatsAppConfig   `yaml:"whatsapp"`
	Trial      TrialConfig      `yaml:"trial"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Web        WebConfig        `yaml:"web"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML config, overlays gateway secrets from the
// environment (a local .env is honored when present), applies defaults and
// validates the minimum required fields.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load() // best effort; prod injects real env vars

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Secrets win from the environment so the YAML can be committed.
	if v := os.Getenv("PAGHIPER_API_KEY"); v != "" {
		cfg.Payment.PagHiper.APIKey = v
	}
	if v := os.Getenv("PAGHIPER_TOKEN"); v != "" {
		cfg.Payment.PagHiper.Token = v
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		cfg.WhatsApp.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.WhatsApp.AuthToken = v
	}
	if v := os.Getenv("PANEL_PASSWORD"); v != "" {
		cfg.Provision.Password = v
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.StateTTL <= 0 {
		cfg.Redis.StateTTL = 24 * time.Hour
	}
	if cfg.Payment.PagHiper.BaseURL == "" {
		cfg.Payment.PagHiper.BaseURL = "https://api.paghiper.com"
	}
	if cfg.Payment.PagHiper.PixBaseURL == "" {
		cfg.Payment.PagHiper.PixBaseURL = "https://pix.paghiper.com"
	}
	if cfg.Payment.BurstAttempts <= 0 {
		cfg.Payment.BurstAttempts = 5
	}
	if cfg.Payment.BurstInterval <= 0 {
		cfg.Payment.BurstInterval = 3 * time.Second
	}
	if cfg.Payment.PollAttempts <= 0 {
		cfg.Payment.PollAttempts = 12
	}
	if cfg.Payment.PollInterval <= 0 {
		cfg.Payment.PollInterval = 30 * time.Second
	}
	if cfg.Provision.DefaultPackage <= 0 {
		cfg.Provision.DefaultPackage = 2
	}
	if cfg.WhatsApp.Workers <= 0 {
		cfg.WhatsApp.Workers = 8
	}
	if cfg.Trial.CooldownDays <= 0 {
		cfg.Trial.CooldownDays = 60
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if !dev {
		if cfg.Payment.PagHiper.APIKey == "" || cfg.Payment.PagHiper.Token == "" {
			return nil, errors.New("payment.paghiper api_key/token are required (or PAGHIPER_API_KEY/PAGHIPER_TOKEN)")
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
