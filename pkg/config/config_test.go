package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 8081, cfg.GRPCPort)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, "USD", cfg.Fees.Currency)
	assert.True(t, cfg.Fees.ServiceFeePercent.IsZero())
	assert.False(t, cfg.PaymentSandbox)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("PAYMENT_SANDBOX", "true")
	t.Setenv("SERVICE_FEE_PERCENT", "3")
	t.Setenv("SERVICE_FEE_FIXED", "0.50")
	t.Setenv("GATEWAY_TIMEOUT", "2s")
	t.Setenv("HOSTED_CARD_URL", "https://pay.example.com")
	t.Setenv("EXCHANGE_DEPOSIT_ADDRESS", "TXabc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.True(t, cfg.PaymentSandbox)
	assert.Equal(t, "3", cfg.Fees.ServiceFeePercent.String())
	assert.Equal(t, "0.5", cfg.Fees.ServiceFeeFixed.String())
	assert.Equal(t, 2*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, "https://pay.example.com", cfg.HostedCard.BaseURL)
	assert.Equal(t, "TXabc", cfg.Exchange.DepositAddress)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestSandboxRefusedInProduction(t *testing.T) {
	for _, env := range []string{"prod", "Production"} {
		t.Run(env, func(t *testing.T) {
			t.Setenv("APP_ENV", env)
			t.Setenv("PAYMENT_SANDBOX", "true")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "PAYMENT_SANDBOX")
		})
	}

	t.Setenv("APP_ENV", "prod")
	t.Setenv("PAYMENT_SANDBOX", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Production())
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{
		PostgresUser:     "u",
		PostgresPassword: "p",
		PostgresHost:     "db",
		PostgresPort:     5433,
		PostgresDB:       "shop",
		PostgresSSLMode:  "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5433/shop?sslmode=disable", cfg.PostgresDSN())
}
