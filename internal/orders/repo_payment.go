package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, order_id, method, channel, gateway_order_id, snap_token, redirect_url,
	amount, status, expired_at, paid_at, raw_response, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p   Payment
		raw []byte
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.Method, &p.Channel, &p.GatewayOrderID, &p.SnapToken, &p.RedirectURL,
		&p.Amount, &p.Status, &p.ExpiredAt, &p.PaidAt, &raw, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	p.RawResponse = raw
	return &p, nil
}

func (r *Repo) PaymentByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	return scanPayment(r.DB.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id=$1`, orderID))
}

// MarkPaymentSuccess: transisi sukses dalam satu transaksi. Balik (false, nil)
// tanpa mutasi kalau payment sudah terminal, jadi pemanggil yang kalah race
// (manual check vs job poll) tahu dia bukan yang mentransisikan dan tidak
// publish event kedua.
// - pesanan menunggu_pembayaran -> diproses + stamp paid_at,
// - stok dikurangi hanya kalau flag stok_dikurangi masih false, lalu flag
//   di-set true. Pembayaran sudah terjadi, jadi pengurangan tidak dicek stok lagi.
func (r *Repo) MarkPaymentSuccess(ctx context.Context, paymentID string, paidAt time.Time, channel string, raw []byte) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		orderID string
		status  PaymentStatus
	)
	err = tx.QueryRow(ctx,
		`SELECT order_id, status FROM payments WHERE id=$1 FOR UPDATE`, paymentID).
		Scan(&orderID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrPaymentNotFound
	}
	if err != nil {
		return false, err
	}
	if status.Terminal() {
		return false, tx.Rollback(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE payments SET status=$2, paid_at=$3, channel=$4,
		       raw_response=COALESCE($5, raw_response), updated_at=now()
		WHERE id=$1`,
		paymentID, PaymentSuccess, paidAt, channel, raw); err != nil {
		return false, err
	}

	var (
		orderStatus   Status
		stokDikurangi bool
	)
	if err := tx.QueryRow(ctx,
		`SELECT status, stok_dikurangi FROM orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&orderStatus, &stokDikurangi); err != nil {
		return false, err
	}

	if orderStatus == StatusMenungguPembayaran {
		if _, err := tx.Exec(ctx,
			`UPDATE orders SET status=$2, paid_at=$3, updated_at=now() WHERE id=$1`,
			orderID, StatusDiproses, paidAt); err != nil {
			return false, err
		}
		if !stokDikurangi {
			if err := decrementStock(ctx, tx, orderID); err != nil {
				return false, err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE orders SET stok_dikurangi=true, updated_at=now() WHERE id=$1`, orderID); err != nil {
				return false, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func decrementStock(ctx context.Context, tx pgx.Tx, orderID string) error {
	rows, err := tx.Query(ctx, `SELECT product_id, qty FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return err
	}
	defer rows.Close()

	type rec struct {
		pid string
		qty int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.pid, &x.qty); err != nil {
			return err
		}
		recs = append(recs, x)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range recs {
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock=stock-$2, sold=sold+$2, updated_at=now() WHERE id=$1`,
			x.pid, x.qty); err != nil {
			return err
		}
	}
	return nil
}

// MarkPaymentFailed: no-op kalau sudah terminal.
func (r *Repo) MarkPaymentFailed(ctx context.Context, paymentID string, raw []byte) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE payments SET status=$2, raw_response=COALESCE($3, raw_response), updated_at=now()
		WHERE id=$1 AND status=$4`,
		paymentID, PaymentFailed, raw, PaymentPending)
	return err
}

// MarkPaymentExpired: no-op kalau sudah terminal.
func (r *Repo) MarkPaymentExpired(ctx context.Context, paymentID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE payments SET status=$2, updated_at=now() WHERE id=$1 AND status=$3`,
		paymentID, PaymentExpired, PaymentPending)
	return err
}

// ---- Kandidat untuk job rekonsiliasi ----

func (r *Repo) collectPayments(ctx context.Context, query string, args ...any) ([]Payment, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ExpiredPendingPayments: pending yang sudah lewat expired_at.
func (r *Repo) ExpiredPendingPayments(ctx context.Context, now time.Time, limit int) ([]Payment, error) {
	return r.collectPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status=$1 AND expired_at IS NOT NULL AND expired_at < $2
		 ORDER BY expired_at LIMIT $3`,
		PaymentPending, now, limit)
}

// PendingPayments: pending non-cash yang belum lewat expiry (kandidat poll gateway).
func (r *Repo) PendingPayments(ctx context.Context, now time.Time, limit int) ([]Payment, error) {
	return r.collectPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status=$1 AND method <> $2 AND (expired_at IS NULL OR expired_at >= $3)
		 ORDER BY created_at LIMIT $4`,
		PaymentPending, MethodCash, now, limit)
}

// UnpaidOrderIDs: pesanan masih menunggu_pembayaran lebih lama dari cutoff.
func (r *Repo) UnpaidOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id FROM orders WHERE status=$1 AND created_at < $2 ORDER BY created_at LIMIT $3`,
		StatusMenungguPembayaran, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CancelUnpaidOrder: pembatalan otomatis oleh sweep. Satu transaksi per
// pesanan; stok dikembalikan kalau sempat dikurangi, payment pending dipaksa
// expired. Pesanan yang keburu berubah status di-skip tanpa error.
func (r *Repo) CancelUnpaidOrder(ctx context.Context, orderID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		status        Status
		stokDikurangi bool
	)
	err = tx.QueryRow(ctx,
		`SELECT status, stok_dikurangi FROM orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&status, &stokDikurangi)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if status != StatusMenungguPembayaran {
		return tx.Rollback(ctx)
	}

	if stokDikurangi {
		if err := restoreStock(ctx, tx, orderID); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, cancel_reason=$3, stok_dikurangi=false, updated_at=now()
		WHERE id=$1`,
		orderID, StatusDibatalkan, "dibatalkan otomatis: tidak dibayar dalam 24 jam"); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status=$2, updated_at=now() WHERE order_id=$1 AND status=$3`,
		orderID, PaymentExpired, PaymentPending); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
