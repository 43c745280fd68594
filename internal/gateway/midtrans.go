package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/tanibudaya/order-service/internal/orders"
)

// Buyer berisi data pembeli yang dikirim ke halaman checkout gateway.
type Buyer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

type CheckoutSession struct {
	Token          string
	RedirectURL    string
	GatewayOrderID string
}

// TransactionStatus adalah hasil query status transaksi, sudah dinormalisasi
// ke vocabulary internal (Raw menyimpan respons gateway apa adanya untuk audit).
type TransactionStatus struct {
	OrderID           string
	TransactionStatus string
	FraudStatus       string
	PaymentType       string
	SettlementTime    string
	Raw               json.RawMessage
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, o *orders.Order, buyer Buyer, method orders.Method) (*CheckoutSession, error)
	CheckTransactionStatus(ctx context.Context, gatewayOrderID string) (*TransactionStatus, error)
}

// Midtrans membungkus Snap (pembuatan sesi checkout) dan Core API (cek status).
type Midtrans struct {
	snap snap.Client
	core coreapi.Client
}

var _ Gateway = (*Midtrans)(nil)

func NewMidtrans(serverKey string, production bool) *Midtrans {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	m := &Midtrans{}
	m.snap.New(serverKey, env)
	m.core.New(serverKey, env)
	return m
}

// Daftar channel yang diaktifkan per metode internal.
var enabledPayments = map[orders.Method][]snap.SnapPaymentType{
	orders.MethodCard:     {snap.PaymentTypeCreditCard},
	orders.MethodQris:     {snap.SnapPaymentType("qris"), snap.SnapPaymentType("other_qris")},
	orders.MethodTransfer: {snap.PaymentTypeBCAVA, snap.PaymentTypeBNIVA, snap.PaymentTypeBRIVA, snap.PaymentTypePermataVA, snap.PaymentTypeEChannel},
	orders.MethodEwallet:  {snap.PaymentTypeGopay, snap.PaymentTypeShopeepay},
}

func (m *Midtrans) CreateCheckoutSession(ctx context.Context, o *orders.Order, buyer Buyer, method orders.Method) (*CheckoutSession, error) {
	channels, ok := enabledPayments[method]
	if !ok {
		return nil, fmt.Errorf("gateway: metode %s tidak lewat gateway", method)
	}

	items := make([]midtrans.ItemDetails, 0, len(o.Items)+3)
	for _, it := range o.Items {
		items = append(items, midtrans.ItemDetails{
			ID:    it.ProductID,
			Name:  truncate(it.Name, 50),
			Price: it.Price,
			Qty:   int32(it.Qty),
		})
	}
	// Ongkir & biaya admin sebagai item sintetis; diskon sebagai item harga negatif,
	// supaya gross amount Snap cocok dengan total pesanan.
	if o.ShippingFee > 0 {
		items = append(items, midtrans.ItemDetails{ID: "SHIPPING", Name: "Ongkos Kirim", Price: o.ShippingFee, Qty: 1})
	}
	if o.AdminFee > 0 {
		items = append(items, midtrans.ItemDetails{ID: "ADMIN", Name: "Biaya Admin", Price: o.AdminFee, Qty: 1})
	}
	if o.Discount > 0 {
		items = append(items, midtrans.ItemDetails{ID: "DISCOUNT", Name: "Diskon", Price: -o.Discount, Qty: 1})
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  o.Kode,
			GrossAmt: o.Total,
		},
		Items:           &items,
		CustomerDetail:  &midtrans.CustomerDetails{FName: buyer.Name, Email: buyer.Email, Phone: buyer.Phone},
		EnabledPayments: channels,
		Expiry: &snap.ExpiryDetails{
			Unit:     "minute",
			Duration: int64(orders.CheckoutExpiry(method) / time.Minute),
		},
	}

	resp, err := m.snap.CreateTransaction(req)
	if err != nil {
		return nil, fmt.Errorf("midtrans: create transaction: %w", err)
	}
	return &CheckoutSession{
		Token:          resp.Token,
		RedirectURL:    resp.RedirectURL,
		GatewayOrderID: o.Kode,
	}, nil
}

func (m *Midtrans) CheckTransactionStatus(ctx context.Context, gatewayOrderID string) (*TransactionStatus, error) {
	resp, err := m.core.CheckTransaction(gatewayOrderID)
	if err != nil {
		// Transaksi tidak dikenal gateway = sesi checkout tidak pernah dipakai;
		// dinormalisasi jadi expire, bukan error.
		if err.GetStatusCode() == http.StatusNotFound {
			return &TransactionStatus{OrderID: gatewayOrderID, TransactionStatus: "expire"}, nil
		}
		return nil, fmt.Errorf("midtrans: check transaction: %w", err)
	}

	raw, merr := json.Marshal(resp)
	if merr != nil {
		raw = nil
	}
	return &TransactionStatus{
		OrderID:           resp.OrderID,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		PaymentType:       resp.PaymentType,
		SettlementTime:    resp.SettlementTime,
		Raw:               raw,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
