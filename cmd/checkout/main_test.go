package main

import (
	"testing"

	"github.com/dwikikusuma/marketplace-checkout/pkg/config"
	"github.com/dwikikusuma/marketplace-checkout/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReturnsStartupErrors(t *testing.T) {
	t.Run("unknown store driver", func(t *testing.T) {
		err := run(config.Config{StoreDriver: "cassandra"}, logger.Discard())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cassandra")
	})

	t.Run("invalid settings", func(t *testing.T) {
		cfg := config.Config{StoreDriver: "memory"}
		cfg.Fees.Currency = "USD"
		cfg.Fees.ServiceFeePercent = decimal.NewFromInt(-1)

		err := run(cfg, logger.Discard())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "settings invalid")
	})
}
