package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tanibudaya/order-service/internal/config"
	kafkax "github.com/tanibudaya/order-service/internal/kafka"
	"github.com/tanibudaya/order-service/internal/notifications"
	"github.com/tanibudaya/order-service/internal/orders"
	"github.com/tanibudaya/order-service/internal/postgres"
	"github.com/tanibudaya/order-service/internal/redisx"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Notifier mendengarkan event order dan menulis notifikasi in-app.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notifications.Service{
		Store: &notifications.Repo{DB: db},
		RDB:   rdb,
		Log:   log,
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")

	// Satu consumer per topic, handler beda-beda.
	topics := []struct {
		topic   string
		handler kafkax.Handler
	}{
		{orders.TopicOrderCreated, svc.HandleOrderCreated},
		{orders.TopicOrderPaid, svc.HandleOrderPaid},
		{orders.TopicOrderCancelled, svc.HandleOrderCancelled},
		{orders.TopicOrderStatusChanged, svc.HandleOrderStatusChanged},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range topics {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, t.topic, workers, log)
		handler := t.handler
		topic := t.topic
		g.Go(func() error {
			log.Info("notifier consumer started",
				zap.String("group", group), zap.String("topic", topic), zap.Int("workers", workers))
			return cons.Start(gctx, handler)
		})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down notifier...")
	case <-gctx.Done():
	}
	cancel()
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Warn("consumer exit", zap.Error(err))
	}
}
