package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the overall application configuration.
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL"    default:"redis://localhost:6379/0"`
	LogLevel    string `envconfig:"LOG_LEVEL"    default:"info"`

	Gateway  GatewayConfig
	Dispatch DispatchConfig
	Staging  StagingConfig
	Billing  BillingConfig
	Tariff   TariffConfig
}

// GatewayConfig configures the persistent SMPP session to the upstream
// telecom gateway.
type GatewayConfig struct {
	Host           string        `envconfig:"GATEWAY_HOST"             default:"127.0.0.1"`
	Port           int           `envconfig:"GATEWAY_PORT"             default:"2775"`
	SystemID       string        `envconfig:"GATEWAY_SYSTEM_ID"        required:"true"`
	Password       string        `envconfig:"GATEWAY_PASSWORD"         required:"true"`
	SystemType     string        `envconfig:"GATEWAY_SYSTEM_TYPE"      default:""`
	SourceAddr     string        `envconfig:"GATEWAY_SOURCE_ADDR"      default:"UzSMS"`
	EnquireLink    time.Duration `envconfig:"GATEWAY_ENQUIRE_LINK"     default:"30s"`
	SubmitTimeout  time.Duration `envconfig:"GATEWAY_SUBMIT_TIMEOUT"   default:"10s"`
	ConnectTimeout time.Duration `envconfig:"GATEWAY_CONNECT_TIMEOUT"  default:"5s"`
	RebindDelay    time.Duration `envconfig:"GATEWAY_REBIND_DELAY"     default:"5s"`
	MaxWindowSize  uint          `envconfig:"GATEWAY_MAX_WINDOW_SIZE"  default:"32"`
	SourceAddrTON  uint8         `envconfig:"GATEWAY_SOURCE_ADDR_TON"  default:"5"`
	SourceAddrNPI  uint8         `envconfig:"GATEWAY_SOURCE_ADDR_NPI"  default:"0"`
	DestAddrTON    uint8         `envconfig:"GATEWAY_DEST_ADDR_TON"    default:"1"`
	DestAddrNPI    uint8         `envconfig:"GATEWAY_DEST_ADDR_NPI"    default:"1"`
}

// DispatchConfig bounds the dispatch queue worker pool. Group jobs get a
// narrower ceiling since each one fans out over a whole member list.
type DispatchConfig struct {
	ContactWorkers int `envconfig:"DISPATCH_CONTACT_WORKERS" default:"8"`
	GroupWorkers   int `envconfig:"DISPATCH_GROUP_WORKERS"   default:"2"`
	QueueSize      int `envconfig:"DISPATCH_QUEUE_SIZE"      default:"1024"`
}

// StagingConfig configures the ephemeral delivery-report staging store.
type StagingConfig struct {
	TTL time.Duration `envconfig:"STAGING_TTL" default:"24h"`
}

// BillingConfig configures ledger-adjacent behavior.
type BillingConfig struct {
	LowBalanceThreshold string `envconfig:"BILLING_LOW_BALANCE_THRESHOLD" default:"1000"`
}

// TariffConfig configures the tariff resolver cache.
type TariffConfig struct {
	DefaultRegion   string        `envconfig:"TARIFF_DEFAULT_REGION"   default:"UZ"`
	RefreshInterval time.Duration `envconfig:"TARIFF_REFRESH_INTERVAL" default:"5m"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, skipping: %v", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
