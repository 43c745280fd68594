package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tanibudaya/order-service/internal/checkout"
	"github.com/tanibudaya/order-service/internal/config"
	"github.com/tanibudaya/order-service/internal/gateway"
	"github.com/tanibudaya/order-service/internal/httpx"
	kafkax "github.com/tanibudaya/order-service/internal/kafka"
	"github.com/tanibudaya/order-service/internal/notifications"
	"github.com/tanibudaya/order-service/internal/orders"
	"github.com/tanibudaya/order-service/internal/payments"
	"github.com/tanibudaya/order-service/internal/postgres"
	"github.com/tanibudaya/order-service/internal/redisx"
)

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

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, satu writer per topic.
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	pCreated.Start(ctx)
	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024, log)
	pPaid.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, log)
	pCancelled.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, log)
	pStatus.Start(ctx)

	// Gateway & services
	gw := gateway.NewMidtrans(cfg.MidtransServerKey, cfg.MidtransProduction)
	repo := &orders.Repo{DB: db}

	checkoutSvc := &checkout.Service{
		Store:   repo,
		Gateway: gw,
		Events: checkout.Events{
			Created:       pCreated,
			Cancelled:     pCancelled,
			StatusChanged: pStatus,
		},
		ServiceName: cfg.ServiceName,
		Log:         log,
	}
	paymentsSvc := &payments.Service{
		Store:       repo,
		Gateway:     gw,
		Paid:        pPaid,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}

	// Router & handler
	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Repo:      repo,
		Checkout:  checkoutSvc,
		Payments:  paymentsSvc,
		Redis:     rdb,
		ClientKey: cfg.MidtransClientKey,
	}
	oh.Register(router)
	nh := &httpx.NotificationsHandler{Repo: &notifications.Repo{DB: db}}
	nh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// tutup inbox -> flush & close writer, lalu tunggu drain
	for _, p := range []*kafkax.Producer{pCreated, pPaid, pCancelled, pStatus} {
		p.Close()
	}
	cancel()
	for _, p := range []*kafkax.Producer{pCreated, pPaid, pCancelled, pStatus} {
		p.WaitClosed()
	}
}
