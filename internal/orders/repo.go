package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// DB adalah irisan *pgxpool.Pool yang dipakai repo.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

type Repo struct{ DB DB }

// PriceItems: snapshot nama+harga dari table products (hindari trust dari client)
// sekaligus precheck stok & status aktif sebelum sesi gateway dibuat.
// Validasi final tetap di CreateOrder, di dalam transaksi dengan lock.
func (r *Repo) PriceItems(ctx context.Context, items []ItemInput) ([]OrderItem, int64, error) {
	out := make([]OrderItem, 0, len(items))
	var subtotal int64
	for _, it := range items {
		if it.Qty <= 0 {
			return nil, 0, fmt.Errorf("qty tidak valid untuk produk %s", it.ProductID)
		}
		var (
			name   string
			price  int64
			stock  int
			active bool
		)
		err := r.DB.QueryRow(ctx,
			`SELECT name, price, stock, active FROM products WHERE id=$1`, it.ProductID).
			Scan(&name, &price, &stock, &active)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if err != nil {
			return nil, 0, err
		}
		if !active {
			return nil, 0, fmt.Errorf("%w: %s", ErrProductInactive, name)
		}
		if stock < it.Qty {
			return nil, 0, fmt.Errorf("%w: %s (stok %d, diminta %d)", ErrInsufficientStock, name, stock, it.Qty)
		}
		item := OrderItem{
			ProductID: it.ProductID,
			Name:      name,
			Price:     price,
			Qty:       it.Qty,
			Subtotal:  price * int64(it.Qty),
		}
		subtotal += item.Subtotal
		out = append(out, item)
	}
	return out, subtotal, nil
}

// CreateOrder menulis pesanan + item + pembayaran dalam satu transaksi.
// Kalau o.StokDikurangi true (metode cash), stok dikurangi & jumlah_terjual
// dinaikkan di transaksi yang sama; gagal satu item = rollback semuanya.
// Harga item memakai snapshot dari PriceItems; di sini hanya stok & status
// aktif yang divalidasi ulang di bawah lock.
func (r *Repo) CreateOrder(ctx context.Context, o *Order, p *Payment) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range o.Items {
		var (
			stock  int
			active bool
		)
		err := tx.QueryRow(ctx,
			`SELECT stock, active FROM products WHERE id=$1 FOR UPDATE`, it.ProductID).
			Scan(&stock, &active)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if err != nil {
			return err
		}
		if !active {
			return fmt.Errorf("%w: %s", ErrProductInactive, it.Name)
		}
		if stock < it.Qty {
			return fmt.Errorf("%w: %s (stok %d, diminta %d)", ErrInsufficientStock, it.Name, stock, it.Qty)
		}
		if o.StokDikurangi {
			if _, err := tx.Exec(ctx,
				`UPDATE products SET stock=stock-$2, sold=sold+$2, updated_at=now() WHERE id=$1`,
				it.ProductID, it.Qty); err != nil {
				return err
			}
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, kode, buyer_id, seller_id, address_id, status, note,
		                   subtotal, shipping_fee, admin_fee, discount, total,
		                   stok_dikurangi, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.Kode, o.BuyerID, o.SellerID, o.AddressID, o.Status, o.Note,
		o.Subtotal, o.ShippingFee, o.AdminFee, o.Discount, o.Total,
		o.StokDikurangi, o.PaidAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrKodeConflict, o.Kode)
		}
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, name, price, qty, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			o.ID, it.ProductID, it.Name, it.Price, it.Qty, it.Subtotal).Scan(&it.ID); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payments(id, order_id, method, channel, gateway_order_id,
		                     snap_token, redirect_url, amount, status, expired_at, paid_at, raw_response)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.OrderID, p.Method, p.Channel, p.GatewayOrderID,
		p.SnapToken, p.RedirectURL, p.Amount, p.Status, p.ExpiredAt, p.PaidAt, []byte(p.RawResponse))
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const orderColumns = `id, kode, buyer_id, seller_id, address_id, courier, tracking_number,
	status, note, cancel_reason, subtotal, shipping_fee, admin_fee, discount, total,
	stok_dikurangi, paid_at, shipped_at, completed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Kode, &o.BuyerID, &o.SellerID, &o.AddressID, &o.Courier, &o.TrackingNumber,
		&o.Status, &o.Note, &o.CancelReason, &o.Subtotal, &o.ShippingFee, &o.AdminFee, &o.Discount, &o.Total,
		&o.StokDikurangi, &o.PaidAt, &o.ShippedAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		return nil, err
	}
	items, err := r.orderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *Repo) OrderByKode(ctx context.Context, kode string) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE kode=$1`, kode))
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

func (r *Repo) orderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, order_id, product_id, name, price, qty, subtotal FROM order_items WHERE order_id=$1 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Price, &it.Qty, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) listOrders(ctx context.Context, where string, arg any) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+where+` ORDER BY created_at DESC LIMIT 100`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *Repo) ListByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	return r.listOrders(ctx, `buyer_id=$1`, buyerID)
}

func (r *Repo) ListBySeller(ctx context.Context, sellerID string) ([]Order, error) {
	return r.listOrders(ctx, `seller_id=$1`, sellerID)
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, seller_id, name, price, stock, sold, active, created_at, updated_at
	                              FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.Price, &p.Stock, &p.Sold, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateOrderStatus: transisi status oleh seller. Transisi di luar table
// ditolak tanpa mutasi apapun; status dikirim wajib bawa kurir + resi.
func (r *Repo) UpdateOrderStatus(ctx context.Context, orderID string, to Status, courier, tracking string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, err
	}
	if err := Transition(o.Status, to); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o.Status = to
	switch to {
	case StatusDikirim:
		o.Courier = courier
		o.TrackingNumber = tracking
		o.ShippedAt = &now
	case StatusSelesai:
		o.CompletedAt = &now
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, courier=$3, tracking_number=$4,
		       shipped_at=$5, completed_at=$6, updated_at=now()
		WHERE id=$1`,
		o.ID, o.Status, o.Courier, o.TrackingNumber, o.ShippedAt, o.CompletedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// CancelOrder: pembatalan oleh pembeli. Hanya dari menunggu_pembayaran atau
// diproses. Stok dikembalikan maksimal sekali (guard flag), payment dipaksa failed.
func (r *Repo) CancelOrder(ctx context.Context, orderID, reason string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, err
	}
	if o.Status != StatusMenungguPembayaran && o.Status != StatusDiproses {
		return nil, fmt.Errorf("%w: status sekarang %s", ErrNotCancellable, o.Status)
	}

	if o.StokDikurangi {
		if err := restoreStock(ctx, tx, o.ID); err != nil {
			return nil, err
		}
	}

	o.Status = StatusDibatalkan
	o.CancelReason = reason
	o.StokDikurangi = false
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, cancel_reason=$3, stok_dikurangi=false, updated_at=now()
		WHERE id=$1`, o.ID, o.Status, o.CancelReason); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status=$2, updated_at=now() WHERE order_id=$1`,
		o.ID, PaymentFailed); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// restoreStock mengembalikan stok + jumlah_terjual untuk semua item pesanan.
func restoreStock(ctx context.Context, tx pgx.Tx, orderID string) error {
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
			`UPDATE products SET stock=stock+$2, sold=sold-$2, updated_at=now() WHERE id=$1`,
			x.pid, x.qty); err != nil {
			return err
		}
	}
	return nil
}
