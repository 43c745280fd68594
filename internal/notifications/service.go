package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/tanibudaya/order-service/internal/kafka"
	"github.com/tanibudaya/order-service/internal/orders"
	"github.com/tanibudaya/order-service/internal/redisx"
)

type Store interface {
	Insert(ctx context.Context, n *Notification) error
}

// Service mengubah event order menjadi notifikasi in-app untuk buyer dan seller.
// Setiap handler dipasang sebagai kafka.Handler pada consumer topik terkait.
type Service struct {
	Store Store
	RDB   *redis.Client
	Log   *zap.Logger
}

// seen cek apakah event sudah pernah diproses. Consumer pakai commit manual,
// jadi event bisa terkirim ulang saat rebalance; dedup di Redis mencegah
// notifikasi dobel.
func (s *Service) seen(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf(redisx.KeyDedup, "notifier", eventID)
	n, err := s.RDB.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("dedup redis: %w", err)
	}
	return n > 0, nil
}

// insert menulis notifikasi lalu menandai event sudah diproses. Tanda dedup
// baru ditulis setelah insert sukses: insert gagal berarti offset tidak
// di-commit dan event yang dikirim ulang masih diproses lagi, bukan hilang.
func (s *Service) insert(ctx context.Context, eventID string, n *Notification) error {
	if err := s.Store.Insert(ctx, n); err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyDedup, "notifier", eventID)
	if err := s.RDB.Set(ctx, key, 1, redisx.TTLDedup).Err(); err != nil {
		// gagal menandai paling buruk berujung notifikasi dobel, bukan hilang
		s.Log.Warn("tandai dedup gagal", zap.String("event_id", eventID), zap.Error(err))
	}
	return nil
}

func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("event order.created tidak valid, dilewati", zap.Error(err))
		return nil
	}
	if dup, err := s.seen(ctx, env.EventID); err != nil {
		return err
	} else if dup {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		s.Log.Warn("payload order.created tidak valid, dilewati", zap.Error(err))
		return nil
	}

	return s.insert(ctx, env.EventID, &Notification{
		UserID:  p.SellerID,
		OrderID: p.OrderID,
		Title:   "Pesanan baru",
		Body:    fmt.Sprintf("Pesanan %s masuk, segera diproses ya.", p.Kode),
	})
}

func (s *Service) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("event order.paid tidak valid, dilewati", zap.Error(err))
		return nil
	}
	if dup, err := s.seen(ctx, env.EventID); err != nil {
		return err
	} else if dup {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		s.Log.Warn("payload order.paid tidak valid, dilewati", zap.Error(err))
		return nil
	}

	return s.insert(ctx, env.EventID, &Notification{
		UserID:  p.BuyerID,
		OrderID: p.OrderID,
		Title:   "Pembayaran diterima",
		Body:    fmt.Sprintf("Pembayaran pesanan %s via %s sudah kami terima.", p.Kode, p.Channel),
	})
}

func (s *Service) HandleOrderCancelled(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("event order.cancelled tidak valid, dilewati", zap.Error(err))
		return nil
	}
	if dup, err := s.seen(ctx, env.EventID); err != nil {
		return err
	} else if dup {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
	if err != nil {
		s.Log.Warn("payload order.cancelled tidak valid, dilewati", zap.Error(err))
		return nil
	}

	return s.insert(ctx, env.EventID, &Notification{
		UserID:  p.SellerID,
		OrderID: p.OrderID,
		Title:   "Pesanan dibatalkan",
		Body:    fmt.Sprintf("Pesanan %s dibatalkan: %s.", p.Kode, p.Reason),
	})
}

func (s *Service) HandleOrderStatusChanged(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("event order.status_changed tidak valid, dilewati", zap.Error(err))
		return nil
	}
	if dup, err := s.seen(ctx, env.EventID); err != nil {
		return err
	} else if dup {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		s.Log.Warn("payload order.status_changed tidak valid, dilewati", zap.Error(err))
		return nil
	}

	n := &Notification{UserID: p.BuyerID, OrderID: p.OrderID}
	switch orders.Status(p.To) {
	case orders.StatusDikirim:
		n.Title = "Pesanan dikirim"
		n.Body = fmt.Sprintf("Pesanan %s dikirim via %s, resi %s.", p.Kode, p.Courier, p.TrackingNumber)
	case orders.StatusSelesai:
		n.Title = "Pesanan selesai"
		n.Body = fmt.Sprintf("Pesanan %s sudah selesai. Terima kasih sudah belanja!", p.Kode)
	case orders.StatusDikembalikan:
		n.Title = "Pesanan dikembalikan"
		n.Body = fmt.Sprintf("Pengembalian pesanan %s sudah dicatat.", p.Kode)
	default:
		n.Title = "Status pesanan berubah"
		n.Body = fmt.Sprintf("Status pesanan %s kini %s.", p.Kode, p.To)
	}
	return s.insert(ctx, env.EventID, n)
}
