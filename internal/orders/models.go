package orders

import (
	"encoding/json"
	"time"
)

type Product struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"seller_id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Stock     int       `json:"stock"`
	Sold      int       `json:"jumlah_terjual"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order struct {
	ID       string `json:"id"`
	Kode     string `json:"kode"`
	BuyerID  string `json:"buyer_id"`
	SellerID string `json:"seller_id"`

	Items []OrderItem `json:"items,omitempty"`

	Subtotal    int64 `json:"subtotal"`
	ShippingFee int64 `json:"shipping_fee"`
	AdminFee    int64 `json:"admin_fee"`
	Discount    int64 `json:"discount"`
	Total       int64 `json:"total"`

	AddressID      string `json:"address_id"`
	Courier        string `json:"courier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`

	Status       Status `json:"status"`
	Note         string `json:"note,omitempty"`
	CancelReason string `json:"cancel_reason,omitempty"`

	// Penjaga idempotensi: stok hanya boleh dikurangi sekali per pesanan.
	StokDikurangi bool `json:"stok_dikurangi"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type OrderItem struct {
	ID        int64  `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	// Snapshot nama & harga saat checkout, bukan nilai live dari products.
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Qty      int    `json:"qty"`
	Subtotal int64  `json:"subtotal"`
}

type Payment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`

	Method  Method `json:"method"`
	Channel string `json:"channel,omitempty"`

	GatewayOrderID string `json:"gateway_order_id,omitempty"`
	SnapToken      string `json:"snap_token,omitempty"`
	RedirectURL    string `json:"redirect_url,omitempty"`

	Amount int64         `json:"amount"`
	Status PaymentStatus `json:"status"`

	ExpiredAt *time.Time `json:"expired_at,omitempty"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`

	// Respons mentah gateway untuk audit.
	RawResponse json.RawMessage `json:"raw_response,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckoutExpiry: metode bergaya QR kadaluarsa 15 menit, sisanya 24 jam.
func CheckoutExpiry(m Method) time.Duration {
	switch m {
	case MethodQris, MethodEwallet:
		return 15 * time.Minute
	default:
		return 24 * time.Hour
	}
}
