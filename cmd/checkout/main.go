package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	cartapp "github.com/dwikikusuma/marketplace-checkout/internal/cart/app"
	catalogapp "github.com/dwikikusuma/marketplace-checkout/internal/catalog/app"
	checkoutapp "github.com/dwikikusuma/marketplace-checkout/internal/checkout/app"
	checkouthttp "github.com/dwikikusuma/marketplace-checkout/internal/checkout/httpapi"
	checkoutadapter "github.com/dwikikusuma/marketplace-checkout/internal/checkout/infra/adapter"
	"github.com/dwikikusuma/marketplace-checkout/internal/notify"
	orderapp "github.com/dwikikusuma/marketplace-checkout/internal/order/app"
	orderhttp "github.com/dwikikusuma/marketplace-checkout/internal/order/httpapi"
	"github.com/dwikikusuma/marketplace-checkout/internal/payment"
	"github.com/dwikikusuma/marketplace-checkout/internal/settings"
	"github.com/dwikikusuma/marketplace-checkout/internal/transport/httpx"
	walletapp "github.com/dwikikusuma/marketplace-checkout/internal/wallet/app"

	"github.com/dwikikusuma/marketplace-checkout/pkg/config"
	"github.com/dwikikusuma/marketplace-checkout/pkg/logger"
	"github.com/dwikikusuma/marketplace-checkout/pkg/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Service: "checkout", Env: cfg.AppEnv, Level: cfg.LogLevel, AddSource: true})

	if err := run(cfg, log); err != nil {
		log.Error("checkout stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

// run owns every resource so deferred cleanup happens before main exits.
func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer store.close()

	// Settings
	settingsSvc := settings.NewService(store.settings, defaultSnapshot(cfg))
	if _, err := settingsSvc.Snapshot(ctx); err != nil {
		return fmt.Errorf("settings invalid: %w", err)
	}

	// Catalog, cart, wallet
	catalogSvc := catalogapp.NewService(store.products)
	cartSvc := cartapp.NewService(store.carts)
	walletSvc := walletapp.NewService(store.wallets)

	// Payment rails
	registry := newRegistry(cfg, walletSvc)

	// Notifications
	var notifier orderapp.Notifier = notify.NewLogNotifier(log)
	if cfg.KafkaBrokers != "" {
		kn := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.NotificationsTopic, log)
		defer kn.Close()
		notifier = kn
	}

	// Orders
	orderSvc := orderapp.NewService(store.orders, settingsSvc, registry, notifier, log)

	// Checkout (adapters)
	cartReader := checkoutadapter.NewCartServiceReader(cartSvc)
	catalogReader := checkoutadapter.NewCatalogServiceReader(catalogSvc)
	checkoutSvc := checkoutapp.NewService(cartReader, catalogReader, settingsSvc, registry, orderSvc, log, checkoutapp.Options{
		MaxConcurrent:  cfg.CheckoutMaxConcurrent,
		GatewayTimeout: cfg.GatewayTimeout,
	})

	if cfg.PaymentSandbox {
		log.Warn("payment sandbox enabled, redirect rails will not charge buyers")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(httpx.AccessLog(log))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.ping(pingCtx); err != nil {
			log.Warn("readiness check failed", slog.Any("err", err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	limiter := httpx.NewUserRateLimiter(cfg.CheckoutRatePerMinute, 0)
	checkouthttp.NewHandler(checkoutSvc, limiter, log).Routes(router)
	orderhttp.NewHandler(orderSvc, cfg.PaymentSandbox, log).Routes(router)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.GatewayTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcAddr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", grpcAddr, err)
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("http server starting", slog.String("addr", httpAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", slog.Any("err", err))
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("grpc starting", slog.String("addr", grpcAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc serve error", slog.Any("err", err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")
	healthSrv.Shutdown()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := server.Shutdown(stopCtx); err != nil {
		log.Error("http shutdown error", slog.Any("err", err))
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopCtx.Done():
		log.Warn("graceful stop timeout, forcing stop")
		grpcServer.Stop()
	case <-stopped:
	}

	wg.Wait()
	log.Info("bye")
	return nil
}

func defaultSnapshot(cfg config.Config) settings.Snapshot {
	return settings.Snapshot{
		Currency:                 cfg.Fees.Currency,
		ServiceFeeFixed:          cfg.Fees.ServiceFeeFixed,
		ServiceFeePercent:        cfg.Fees.ServiceFeePercent,
		HighValueThreshold:       cfg.Fees.HighValueThreshold,
		RequireManualReviewAbove: cfg.Fees.RequireManualReviewAbove,
		DeliveryDelayMinutes:     cfg.Fees.DeliveryDelayMinutes,
		Sandbox:                  cfg.PaymentSandbox,
	}
}

func newRegistry(cfg config.Config, wallets payment.WalletReader) *payment.Registry {
	hc := &http.Client{Timeout: cfg.GatewayTimeout}
	return payment.NewRegistry(
		payment.NewWallet(wallets),
		payment.NewHostedCard(providerConfig(cfg.HostedCard), hc),
		payment.NewCryptoGateway(providerConfig(cfg.CryptoGateway), hc),
		payment.NewBankQR(payment.BankQRConfig{
			BankCode:     cfg.BankQR.BankCode,
			Account:      cfg.BankQR.Account,
			AccountName:  cfg.BankQR.AccountName,
			StatementURL: cfg.BankQR.StatementURL,
			APIKey:       cfg.BankQR.APIKey,
		}, hc),
		payment.NewExchangeTransfer(payment.ExchangeConfig{
			Coin:           cfg.Exchange.Coin,
			Network:        cfg.Exchange.Network,
			DepositAddress: cfg.Exchange.DepositAddress,
			DepositsURL:    cfg.Exchange.DepositsURL,
			APIKey:         cfg.Exchange.APIKey,
		}, hc),
	)
}

func providerConfig(p config.Provider) payment.ProviderConfig {
	return payment.ProviderConfig{
		BaseURL:    p.BaseURL,
		APIKey:     p.APIKey,
		Secret:     p.Secret,
		SuccessURL: p.SuccessURL,
		CancelURL:  p.CancelURL,
		SandboxURL: p.SandboxURL,
	}
}
