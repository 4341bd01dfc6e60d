package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	GRPCPort int `envconfig:"GRPC_PORT" default:"8081"`
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// StoreDriver selects the persistence backend: "postgres" or "memory".
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`

	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"shopping"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"shoppingpassword"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"shopping_db"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	AutoMigrate      bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	KafkaBrokers       string `envconfig:"KAFKA_BROKERS" default:""`
	NotificationsTopic string `envconfig:"NOTIFICATIONS_TOPIC" default:"notifications"`

	CheckoutMaxConcurrent int           `envconfig:"CHECKOUT_MAX_CONCURRENT" default:"10"`
	CheckoutRatePerMinute int           `envconfig:"CHECKOUT_RATE_PER_MINUTE" default:"20"`
	GatewayTimeout        time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
	PaymentSandbox        bool          `envconfig:"PAYMENT_SANDBOX" default:"false"`

	Fees

	HostedCard    Provider `envconfig:"HOSTED_CARD"`
	CryptoGateway Provider `envconfig:"CRYPTO_GATEWAY"`
	BankQR        BankQR   `envconfig:"BANK_QR"`
	Exchange      Exchange `envconfig:"EXCHANGE"`
}

// Fees are the defaults for the runtime settings table.
type Fees struct {
	Currency                 string          `envconfig:"CURRENCY" default:"USD"`
	ServiceFeeFixed          decimal.Decimal `envconfig:"SERVICE_FEE_FIXED" default:"0"`
	ServiceFeePercent        decimal.Decimal `envconfig:"SERVICE_FEE_PERCENT" default:"0"`
	HighValueThreshold       decimal.Decimal `envconfig:"HIGH_VALUE_THRESHOLD" default:"0"`
	RequireManualReviewAbove decimal.Decimal `envconfig:"REQUIRE_MANUAL_REVIEW_ABOVE" default:"0"`
	DeliveryDelayMinutes     int             `envconfig:"DELIVERY_DELAY_MINUTES" default:"0"`
}

type Provider struct {
	BaseURL    string `envconfig:"URL"`
	APIKey     string `envconfig:"API_KEY"`
	Secret     string `envconfig:"WEBHOOK_SECRET"`
	SuccessURL string `envconfig:"SUCCESS_URL"`
	CancelURL  string `envconfig:"CANCEL_URL"`
	SandboxURL string `envconfig:"SANDBOX_URL" default:"http://localhost:3000/sandbox/pay"`
}

type BankQR struct {
	BankCode     string `envconfig:"BANK_CODE" default:"SANDBOX"`
	Account      string `envconfig:"ACCOUNT" default:"0000000000"`
	AccountName  string `envconfig:"ACCOUNT_NAME" default:"Marketplace"`
	StatementURL string `envconfig:"STATEMENT_URL"`
	APIKey       string `envconfig:"API_KEY"`
}

type Exchange struct {
	Coin           string `envconfig:"COIN" default:"USDT"`
	Network        string `envconfig:"NETWORK" default:"TRC20"`
	DepositAddress string `envconfig:"DEPOSIT_ADDRESS"`
	DepositsURL    string `envconfig:"DEPOSITS_URL"`
	APIKey         string `envconfig:"API_KEY"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate refuses combinations that must never reach a running process.
func (c Config) Validate() error {
	if c.PaymentSandbox && c.Production() {
		return errors.New("PAYMENT_SANDBOX cannot be enabled when APP_ENV is production")
	}
	return nil
}

func (c Config) Production() bool {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "prod", "production":
		return true
	}
	return false
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSLMode)
}
