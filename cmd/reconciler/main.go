package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tanibudaya/order-service/internal/config"
	"github.com/tanibudaya/order-service/internal/gateway"
	"github.com/tanibudaya/order-service/internal/jobs"
	kafkax "github.com/tanibudaya/order-service/internal/kafka"
	"github.com/tanibudaya/order-service/internal/orders"
	"github.com/tanibudaya/order-service/internal/payments"
	"github.com/tanibudaya/order-service/internal/postgres"
)

// Reconciler menjalankan tiga sweep berkala: expire pembayaran yang lewat
// tenggat, batalkan pesanan yang tak kunjung dibayar, dan poll status pending
// ke gateway.
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

	pPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024, log)
	pPaid.Start(ctx)

	repo := &orders.Repo{DB: db}
	gw := gateway.NewMidtrans(cfg.MidtransServerKey, cfg.MidtransProduction)

	paymentsSvc := &payments.Service{
		Store:       repo,
		Gateway:     gw,
		Paid:        pPaid,
		ServiceName: cfg.ServiceName + "-reconciler",
		Log:         log,
	}
	rec := &jobs.Reconciler{
		Store:     repo,
		Checker:   paymentsSvc,
		UnpaidTTL: cfg.UnpaidOrderTTL,
		Log:       log,
	}

	sched := &jobs.Scheduler{Log: log}
	sched.Add(jobs.Job{Name: "expire-payments", Every: cfg.ExpireSweepInterval, Run: rec.ExpirePayments})
	sched.Add(jobs.Job{Name: "cancel-unpaid-orders", Every: cfg.UnpaidSweepInterval, Run: rec.CancelUnpaidOrders})
	sched.Add(jobs.Job{Name: "poll-pending-payments", Every: cfg.PendingPollInterval, Run: rec.PollPendingPayments})

	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down reconciler...")
	cancel()
	<-done

	pPaid.Close()
	pPaid.WaitClosed()
}
