package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/avdeenkov/cryptoshop/internal/config"
	"github.com/avdeenkov/cryptoshop/internal/httpx"
	"github.com/avdeenkov/cryptoshop/internal/kafka"
	"github.com/avdeenkov/cryptoshop/internal/lifecycle"
	"github.com/avdeenkov/cryptoshop/internal/logging"
	"github.com/avdeenkov/cryptoshop/internal/notify"
	"github.com/avdeenkov/cryptoshop/internal/payment"
	"github.com/avdeenkov/cryptoshop/internal/postgres"
	"github.com/avdeenkov/cryptoshop/internal/pricing"
	"github.com/avdeenkov/cryptoshop/internal/redisx"
	"github.com/avdeenkov/cryptoshop/internal/shop"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logging.MustNew(cfg.ServiceName, cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect failed", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("schema migration failed", zap.Error(err))
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()

	// Producers outlive the signal context: requests still draining through
	// srv.Shutdown may publish, so they are only closed after the drain.
	producerCtx, stopProducers := context.WithCancel(context.Background())
	defer stopProducers()
	ordersProducer := kafka.NewProducer(cfg.KafkaBrokers, shop.TopicOrderEvents, 1024, log)
	broadcastProducer := kafka.NewProducer(cfg.KafkaBrokers, shop.TopicBroadcast, 256, log)
	ordersProducer.Start(producerCtx)
	broadcastProducer.Start(producerCtx)

	productRepo := &shop.ProductRepo{DB: db}
	orderRepo := &shop.OrderRepo{DB: db}
	coefficientRepo := &shop.CoefficientRepo{DB: db}
	userRepo := &shop.UserRepo{DB: db}

	notifier := notify.New(cfg.ServiceName, ordersProducer, broadcastProducer)
	gateway := payment.NewClient(cfg.GatewayURL, cfg.GatewayToken, log)
	pricer := &pricing.Engine{Coefficients: coefficientRepo}
	metrics := lifecycle.NewMetrics(prometheus.DefaultRegisterer)

	manager := lifecycle.NewManager(orderRepo, productRepo, pricer, gateway, notifier, log, metrics)
	defer manager.Stop()
	if err := manager.Resume(ctx); err != nil {
		log.Fatal("pending order resume failed", zap.Error(err))
	}

	shopHandler := &httpx.ShopHandler{
		Catalog:   productRepo,
		Lifecycle: manager,
		Orders:    orderRepo,
		Users:     userRepo,
		Cache:     rdb,
		Log:       log,
	}
	adminHandler := &httpx.AdminHandler{
		Products:     productRepo,
		Coefficients: coefficientRepo,
		Bans:         userRepo,
		Stats:        orderRepo,
		Broadcast:    notifier,
		Log:          log,
	}

	srv := httpx.NewServer(cfg.HTTPAddr, httpx.NewRouter(shopHandler, adminHandler, cfg.AdminToken))
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}

	// Expiry timers publish notifications too; stop them before the producers.
	manager.Stop()
	stopProducers()
	ordersProducer.WaitClosed()
	broadcastProducer.WaitClosed()
	log.Info("stopped")
}
