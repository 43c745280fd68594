package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tanibudaya/order-service/internal/orders"
)

// Store adalah irisan repo yang dipakai sweep.
type Store interface {
	ExpiredPendingPayments(ctx context.Context, now time.Time, limit int) ([]orders.Payment, error)
	MarkPaymentExpired(ctx context.Context, paymentID string) error
	UnpaidOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	CancelUnpaidOrder(ctx context.Context, orderID string) error
	PendingPayments(ctx context.Context, now time.Time, limit int) ([]orders.Payment, error)
}

// Checker menjalankan jalur resolve yang sama dengan cek manual.
type Checker interface {
	Reconcile(ctx context.Context, p *orders.Payment) (*orders.Payment, error)
}

// Reconciler memegang tiga sweep berkala. Tiap record diproses di transaksinya
// sendiri: error satu record dicatat lalu di-skip, tidak menggagalkan batch
// dan tidak membatalkan record yang sudah ter-commit sebelumnya.
type Reconciler struct {
	Store     Store
	Checker   Checker
	UnpaidTTL time.Duration
	Log       *zap.Logger
	Now       func() time.Time
}

const batchLimit = 200

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// ExpirePayments: payment pending yang lewat expired_at -> expired.
// Pesanannya belum disentuh di sini; itu urusan CancelUnpaidOrders.
func (r *Reconciler) ExpirePayments(ctx context.Context) error {
	now := r.now()
	candidates, err := r.Store.ExpiredPendingPayments(ctx, now, batchLimit)
	if err != nil {
		return err
	}
	for _, p := range candidates {
		if err := r.Store.MarkPaymentExpired(ctx, p.ID); err != nil {
			r.Log.Error("expire payment", zap.String("payment_id", p.ID), zap.Error(err))
			continue
		}
	}
	if len(candidates) > 0 {
		r.Log.Info("expire sweep", zap.Int("candidates", len(candidates)))
	}
	return nil
}

// CancelUnpaidOrders: pesanan menunggu_pembayaran lebih lama dari TTL
// dibatalkan otomatis (stok balik kalau sempat dikurangi, payment -> expired).
func (r *Reconciler) CancelUnpaidOrders(ctx context.Context) error {
	cutoff := r.now().Add(-r.UnpaidTTL)
	ids, err := r.Store.UnpaidOrderIDs(ctx, cutoff, batchLimit)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.Store.CancelUnpaidOrder(ctx, id); err != nil {
			r.Log.Error("cancel unpaid order", zap.String("order_id", id), zap.Error(err))
			continue
		}
	}
	if len(ids) > 0 {
		r.Log.Info("unpaid sweep", zap.Int("candidates", len(ids)))
	}
	return nil
}

// PollPendingPayments: tanya gateway untuk semua payment pending non-cash yang
// belum expired, lewat jalur resolve yang sama dengan cek manual (termasuk
// guard stok_dikurangi di transisi sukses).
func (r *Reconciler) PollPendingPayments(ctx context.Context) error {
	now := r.now()
	candidates, err := r.Store.PendingPayments(ctx, now, batchLimit)
	if err != nil {
		return err
	}
	for i := range candidates {
		p := candidates[i]
		if _, err := r.Checker.Reconcile(ctx, &p); err != nil {
			r.Log.Error("poll payment", zap.String("payment_id", p.ID), zap.Error(err))
			continue
		}
	}
	if len(candidates) > 0 {
		r.Log.Info("pending poll", zap.Int("candidates", len(candidates)))
	}
	return nil
}
