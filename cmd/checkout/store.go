package main

import (
	"context"
	"fmt"
	"log/slog"

	cartapp "github.com/dwikikusuma/marketplace-checkout/internal/cart/app"
	cartpg "github.com/dwikikusuma/marketplace-checkout/internal/cart/infra/postgres"
	catalogapp "github.com/dwikikusuma/marketplace-checkout/internal/catalog/app"
	catalogpg "github.com/dwikikusuma/marketplace-checkout/internal/catalog/infra/postgres"
	orderapp "github.com/dwikikusuma/marketplace-checkout/internal/order/app"
	orderpg "github.com/dwikikusuma/marketplace-checkout/internal/order/infra/postgres"
	"github.com/dwikikusuma/marketplace-checkout/internal/settings"
	settingspg "github.com/dwikikusuma/marketplace-checkout/internal/settings/infra/postgres"
	"github.com/dwikikusuma/marketplace-checkout/internal/store/memory"
	walletapp "github.com/dwikikusuma/marketplace-checkout/internal/wallet/app"
	walletpg "github.com/dwikikusuma/marketplace-checkout/internal/wallet/infra/postgres"

	"github.com/dwikikusuma/marketplace-checkout/pkg/config"
	"github.com/dwikikusuma/marketplace-checkout/pkg/postgres"
)

type store struct {
	products catalogapp.ProductRepo
	carts    cartapp.CartRepo
	wallets  walletapp.WalletRepo
	settings settings.Store
	orders   orderapp.OrderRepo

	ping  func(ctx context.Context) error
	close func()
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store, error) {
	switch cfg.StoreDriver {
	case "memory":
		m := memory.New()
		log.Warn("using in-memory store, data is lost on restart")
		return store{
			products: m.Products(),
			carts:    m.Carts(),
			wallets:  m.Wallets(),
			settings: m.Settings(),
			orders:   m.Orders(),
			ping:     func(context.Context) error { return nil },
			close:    func() {},
		}, nil

	case "postgres":
		db, err := postgres.Open(ctx, postgres.Config{DSN: cfg.PostgresDSN()})
		if err != nil {
			return store{}, err
		}
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return store{}, fmt.Errorf("migrate: %w", err)
			}
			log.Info("schema migrated")
		}
		return store{
			products: catalogpg.NewProductRepo(db),
			carts:    cartpg.NewCartRepo(db),
			wallets:  walletpg.NewWalletRepo(db),
			settings: settingspg.NewSettingsRepo(db),
			orders:   orderpg.NewOrderRepo(db),
			ping:     db.PingContext,
			close:    func() { _ = db.Close() },
		}, nil
	}
	return store{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
