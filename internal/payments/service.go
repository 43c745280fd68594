// Package payments merekonsiliasi status pembayaran lokal dengan gateway:
// cek manual dari UI, notifikasi webhook, dan job poll berkala memakai jalur
// resolve yang sama.
package payments

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tanibudaya/order-service/internal/gateway"
	kafkax "github.com/tanibudaya/order-service/internal/kafka"
	"github.com/tanibudaya/order-service/internal/orders"
)

// Store adalah irisan repo yang dipakai rekonsiliasi.
type Store interface {
	PaymentByOrderID(ctx context.Context, orderID string) (*orders.Payment, error)
	OrderByKode(ctx context.Context, kode string) (*orders.Order, error)
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	MarkPaymentSuccess(ctx context.Context, paymentID string, paidAt time.Time, channel string, raw []byte) (bool, error)
	MarkPaymentFailed(ctx context.Context, paymentID string, raw []byte) error
	MarkPaymentExpired(ctx context.Context, paymentID string) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store       Store
	Gateway     gateway.Gateway
	Paid        Publisher
	ServiceName string
	Log         *zap.Logger
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// CheckPaymentStatus: cek manual dari pembeli/polling UI.
// Short-circuit kalau payment sudah terminal atau metodenya cash; kalau lewat
// expired_at menurut jam lokal, langsung expired tanpa tanya gateway.
func (s *Service) CheckPaymentStatus(ctx context.Context, orderID string) (*orders.Payment, error) {
	p, err := s.Store.PaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.Method == orders.MethodCash || p.Status.Terminal() {
		return p, nil
	}

	if p.ExpiredAt != nil && s.now().After(*p.ExpiredAt) {
		if err := s.Store.MarkPaymentExpired(ctx, p.ID); err != nil {
			return nil, err
		}
		p.Status = orders.PaymentExpired
		return p, nil
	}

	return s.Reconcile(ctx, p)
}

// HandleNotification: webhook gateway. Payload notifikasi tidak dipercaya
// mentah-mentah; status selalu di-query ulang ke gateway lewat Reconcile,
// jadi notifikasi palsu tidak bisa menyuntik state.
func (s *Service) HandleNotification(ctx context.Context, gatewayOrderID string) error {
	o, err := s.Store.OrderByKode(ctx, gatewayOrderID)
	if err != nil {
		return err
	}
	p, err := s.Store.PaymentByOrderID(ctx, o.ID)
	if err != nil {
		return err
	}
	if p.Method == orders.MethodCash || p.Status.Terminal() {
		return nil
	}
	_, err = s.Reconcile(ctx, p)
	return err
}

// Reconcile: query gateway -> petakan -> terapkan. Dipakai cek manual,
// webhook, dan job poll. Error komunikasi gateway dipetakan ke expired
// (konsisten dengan normalisasi 404 di adapter).
func (s *Service) Reconcile(ctx context.Context, p *orders.Payment) (*orders.Payment, error) {
	ts, err := s.Gateway.CheckTransactionStatus(ctx, p.GatewayOrderID)
	if err != nil {
		s.Log.Warn("gagal cek status gateway, payment dianggap expired",
			zap.String("payment_id", p.ID), zap.Error(err))
		if err := s.Store.MarkPaymentExpired(ctx, p.ID); err != nil {
			return nil, err
		}
		p.Status = orders.PaymentExpired
		return p, nil
	}

	switch ResolveStatus(ts.TransactionStatus, ts.FraudStatus) {
	case orders.PaymentSuccess:
		paidAt := settlementTime(ts.SettlementTime, s.now())
		channel := gateway.ExtractPaymentChannel(ts.PaymentType, ts.Raw)
		applied, err := s.Store.MarkPaymentSuccess(ctx, p.ID, paidAt, channel, ts.Raw)
		if err != nil {
			return nil, err
		}
		p.Status = orders.PaymentSuccess
		p.PaidAt = &paidAt
		p.Channel = channel
		p.RawResponse = ts.Raw
		// event hanya dari pemanggil yang benar-benar mentransisikan;
		// yang kalah race tidak bikin order.paid kedua
		if applied {
			s.publishPaid(ctx, p)
		}

	case orders.PaymentFailed:
		if err := s.Store.MarkPaymentFailed(ctx, p.ID, ts.Raw); err != nil {
			return nil, err
		}
		p.Status = orders.PaymentFailed
		p.RawResponse = ts.Raw

	case orders.PaymentExpired:
		if err := s.Store.MarkPaymentExpired(ctx, p.ID); err != nil {
			return nil, err
		}
		p.Status = orders.PaymentExpired

	case orders.PaymentPending:
		// biarkan; poll berikutnya mengecek lagi
	}

	return p, nil
}

func (s *Service) publishPaid(ctx context.Context, p *orders.Payment) {
	if s.Paid == nil {
		return
	}
	o, err := s.Store.GetOrder(ctx, p.OrderID)
	if err != nil {
		s.Log.Warn("payload order.paid tidak lengkap", zap.String("order_id", p.OrderID), zap.Error(err))
		return
	}
	env := orders.NewEnvelope(orders.EventOrderPaid, s.ServiceName, o.ID, orders.OrderPaidPayload{
		OrderID: o.ID,
		Kode:    o.Kode,
		BuyerID: o.BuyerID,
		Channel: p.Channel,
		Amount:  p.Amount,
	})
	s.Paid.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// settlementTime parse format waktu settlement gateway ("2006-01-02 15:04:05",
// zona WIB); jatuh ke fallback kalau kosong/tidak kebaca.
func settlementTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		loc = time.FixedZone("WIB", 7*3600)
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc)
	if err != nil {
		return fallback
	}
	return t.UTC()
}
