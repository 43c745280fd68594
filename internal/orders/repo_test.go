package orders

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
)

func orderRowDiproses(createdAt time.Time) *pgxmock.Rows {
	paidAt := createdAt.Add(10 * time.Minute)
	return pgxmock.NewRows([]string{
		"id", "kode", "buyer_id", "seller_id", "address_id", "courier", "tracking_number",
		"status", "note", "cancel_reason", "subtotal", "shipping_fee", "admin_fee", "discount", "total",
		"stok_dikurangi", "paid_at", "shipped_at", "completed_at", "created_at", "updated_at",
	}).AddRow(
		"ord-1", "TB-20250601-0001", "buyer-1", "seller-1", "addr-1", "JNE", "",
		StatusDiproses, "", "", int64(160000), int64(20000), int64(5000), int64(0), int64(185000),
		true, &paidAt, (*time.Time)(nil), (*time.Time)(nil), createdAt, createdAt,
	)
}

// Pembatalan pesanan yang stoknya sudah dikurangi: stok dikembalikan sekali,
// percobaan kedua mentok karena statusnya sudah dibatalkan.
func TestCancelOrderPulihkanStokSekali(t *testing.T) {
	repo, pool := newMockRepo(t)
	createdAt := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	pool.ExpectBegin()
	pool.ExpectQuery(`FROM orders WHERE id=\$1 FOR UPDATE`).
		WithArgs("ord-1").
		WillReturnRows(orderRowDiproses(createdAt))
	pool.ExpectQuery(`SELECT product_id, qty FROM order_items WHERE order_id=\$1`).
		WithArgs("ord-1").
		WillReturnRows(pgxmock.NewRows([]string{"product_id", "qty"}).AddRow("prod-1", 2))
	pool.ExpectExec(`UPDATE products SET stock=stock\+\$2, sold=sold-\$2`).
		WithArgs("prod-1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec(`UPDATE orders SET status=\$2, cancel_reason=\$3`).
		WithArgs("ord-1", StatusDibatalkan, "berubah pikiran").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec(`UPDATE payments SET status=\$2`).
		WithArgs("ord-1", PaymentFailed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectCommit()

	o, err := repo.CancelOrder(context.Background(), "ord-1", "berubah pikiran")
	assert.NoError(t, err)
	assert.Equal(t, StatusDibatalkan, o.Status)
	assert.False(t, o.StokDikurangi)

	// percobaan kedua: status sudah dibatalkan, tidak ada mutasi sama sekali
	cancelled := pgxmock.NewRows([]string{
		"id", "kode", "buyer_id", "seller_id", "address_id", "courier", "tracking_number",
		"status", "note", "cancel_reason", "subtotal", "shipping_fee", "admin_fee", "discount", "total",
		"stok_dikurangi", "paid_at", "shipped_at", "completed_at", "created_at", "updated_at",
	}).AddRow(
		"ord-1", "TB-20250601-0001", "buyer-1", "seller-1", "addr-1", "JNE", "",
		StatusDibatalkan, "", "berubah pikiran", int64(160000), int64(20000), int64(5000), int64(0), int64(185000),
		false, (*time.Time)(nil), (*time.Time)(nil), (*time.Time)(nil), createdAt, createdAt,
	)
	pool.ExpectBegin()
	pool.ExpectQuery(`FROM orders WHERE id=\$1 FOR UPDATE`).
		WithArgs("ord-1").
		WillReturnRows(cancelled)
	pool.ExpectRollback()

	_, err = repo.CancelOrder(context.Background(), "ord-1", "berubah pikiran")
	assert.ErrorIs(t, err, ErrNotCancellable)

	assert.NoError(t, pool.ExpectationsWereMet())
}

// Sweep pembatalan otomatis melewati pesanan yang keburu dibayar.
func TestCancelUnpaidOrderSkipKalauSudahDiproses(t *testing.T) {
	repo, pool := newMockRepo(t)

	pool.ExpectBegin()
	pool.ExpectQuery(`SELECT status, stok_dikurangi FROM orders WHERE id=\$1 FOR UPDATE`).
		WithArgs("ord-1").
		WillReturnRows(pgxmock.NewRows([]string{"status", "stok_dikurangi"}).AddRow(StatusDiproses, true))
	pool.ExpectRollback()

	err := repo.CancelUnpaidOrder(context.Background(), "ord-1")
	assert.NoError(t, err)
	assert.NoError(t, pool.ExpectationsWereMet())
}
