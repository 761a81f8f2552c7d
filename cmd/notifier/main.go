package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/avdeenkov/cryptoshop/internal/config"
	"github.com/avdeenkov/cryptoshop/internal/kafka"
	"github.com/avdeenkov/cryptoshop/internal/logging"
	"github.com/avdeenkov/cryptoshop/internal/messenger"
	"github.com/avdeenkov/cryptoshop/internal/notify"
	"github.com/avdeenkov/cryptoshop/internal/postgres"
	"github.com/avdeenkov/cryptoshop/internal/redisx"
	"github.com/avdeenkov/cryptoshop/internal/shop"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.ServiceName == "shop-api" {
		cfg.ServiceName = "shop-notifier"
	}

	log := logging.MustNew(cfg.ServiceName, cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect failed", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()

	deliverer := &notify.Deliverer{
		Service:     cfg.ServiceName,
		Messenger:   messenger.NewClient(cfg.MessengerURL, cfg.MessengerToken),
		Recipients:  &shop.UserRepo{DB: db},
		Dedup:       rdb,
		AdminChatID: cfg.AdminChatID,
		Log:         log,
	}

	orderEvents := kafka.NewConsumer(cfg.KafkaBrokers, cfg.ServiceName, shop.TopicOrderEvents, 4, log)
	broadcasts := kafka.NewConsumer(cfg.KafkaBrokers, cfg.ServiceName, shop.TopicBroadcast, 2, log)

	errCh := make(chan error, 2)
	go func() { errCh <- orderEvents.Start(ctx, deliverer.HandleOrderEvent) }()
	go func() { errCh <- broadcasts.Start(ctx, deliverer.HandleBroadcast) }()

	log.Info("notifier consuming",
		zap.String("order_topic", shop.TopicOrderEvents),
		zap.String("broadcast_topic", shop.TopicBroadcast))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("consumer stopped", zap.Error(err))
		}
	}
	stop()
	log.Info("stopped")
}
