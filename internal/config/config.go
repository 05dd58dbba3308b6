// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
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

type HTTPConfig struct {
	Port         int     `yaml:"port" validate:"required,gt=0"`
	PublicURL    string  `yaml:"public_url" validate:"required,url"` // base for webhook callback URLs
	APIToken     string  `yaml:"api_token"`                          // bearer token for the charge API
	WebhookRate  float64 `yaml:"webhook_rate"`                       // req/s per webhook route
	WebhookBurst int     `yaml:"webhook_burst"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" validate:"required"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" validate:"required"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// ProviderCredentials covers the credential shapes the supported providers
// use; each adapter picks the fields it needs.
type ProviderCredentials struct {
	ShopID     string   `yaml:"shop_id"`
	SecretKey  string   `yaml:"secret_key"`
	SecretKey2 string   `yaml:"secret_key2"` // second secret for callback signing (freekassa, robokassa)
	APIKey     string   `yaml:"api_key"`
	BaseURL    string   `yaml:"base_url"` // override for sandboxes and tests
	Currencies []string `yaml:"currencies"`
}

type PaymentConfig struct {
	YooKassa      ProviderCredentials `yaml:"yookassa"`
	YooMoney      ProviderCredentials `yaml:"yoomoney"`
	FreeKassa     ProviderCredentials `yaml:"freekassa"`
	Robokassa     ProviderCredentials `yaml:"robokassa"`
	CryptoBot     ProviderCredentials `yaml:"cryptobot"`
	Cryptomus     ProviderCredentials `yaml:"cryptomus"`
	Lava          ProviderCredentials `yaml:"lava"`
	TelegramStars struct {
		BotToken     string `yaml:"bot_token"`
		WebhookToken string `yaml:"webhook_token"` // shared secret for the relayed payment webhook
	} `yaml:"telegram_stars"`
}

// BillingConfig holds currency conversion into the canonical balance
// currency (RUB). Rates are per one major unit of the source currency.
type BillingConfig struct {
	BalanceCurrency string             `yaml:"balance_currency"`
	Rates           map[string]float64 `yaml:"rates"`
}

type ProvisioningConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type BotSyncConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type WorkerConfig struct {
	SyncWorkers int           `yaml:"sync_workers"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	FailAfter  time.Duration `yaml:"fail_after"` // pending older than this is marked failed
}

type Config struct {
	Log          LogConfig          `yaml:"log"`
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Payment      PaymentConfig      `yaml:"payment"`
	Billing      BillingConfig      `yaml:"billing"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	BotSync      BotSyncConfig      `yaml:"bot_sync"`
	Worker       WorkerConfig       `yaml:"worker"`
	Reconciler   ReconcilerConfig   `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, overlays .env values for credentials that
// should not live in the file, applies defaults and validates. All provider
// credentials travel inside the returned struct; there is no package-level
// credential state.
func LoadConfig(path string, dev bool) (*Config, error) {
	// .env is optional; real deployments pass env through the unit file.
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.HTTP.APIToken = v
	}

	cfg.applyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.WebhookRate <= 0 {
		c.HTTP.WebhookRate = 25
	}
	if c.HTTP.WebhookBurst <= 0 {
		c.HTTP.WebhookBurst = 50
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = time.Hour
	}
	if c.Billing.BalanceCurrency == "" {
		c.Billing.BalanceCurrency = "RUB"
	}
	if c.Billing.Rates == nil {
		c.Billing.Rates = map[string]float64{}
	}
	if _, ok := c.Billing.Rates[c.Billing.BalanceCurrency]; !ok {
		c.Billing.Rates[c.Billing.BalanceCurrency] = 1
	}
	if c.Provisioning.Timeout <= 0 {
		c.Provisioning.Timeout = 15 * time.Second
	}
	// Generous: the bot backend may fan out to many records per sync.
	if c.BotSync.Timeout <= 0 {
		c.BotSync.Timeout = 45 * time.Second
	}
	if c.Worker.SyncWorkers <= 0 {
		c.Worker.SyncWorkers = 4
	}
	if c.Worker.MaxRetries <= 0 {
		c.Worker.MaxRetries = 3
	}
	if c.Worker.RetryDelay <= 0 {
		c.Worker.RetryDelay = 2 * time.Second
	}
	if c.Reconciler.Interval <= 0 {
		c.Reconciler.Interval = 5 * time.Minute
	}
	if c.Reconciler.StaleAfter <= 0 {
		c.Reconciler.StaleAfter = 30 * time.Minute
	}
	if c.Reconciler.FailAfter <= 0 {
		c.Reconciler.FailAfter = 24 * time.Hour
	}
}
