// Package checkout memegang alur pembuatan pesanan, pembatalan oleh pembeli,
// dan transisi status oleh seller.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tanibudaya/order-service/internal/gateway"
	kafkax "github.com/tanibudaya/order-service/internal/kafka"
	"github.com/tanibudaya/order-service/internal/orders"
)

// Store adalah irisan repo yang dipakai service ini.
type Store interface {
	PriceItems(ctx context.Context, items []orders.ItemInput) ([]orders.OrderItem, int64, error)
	CreateOrder(ctx context.Context, o *orders.Order, p *orders.Payment) error
	GetOrderStatus(ctx context.Context, orderID string) (orders.Status, error)
	UpdateOrderStatus(ctx context.Context, orderID string, to orders.Status, courier, tracking string) (*orders.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) (*orders.Order, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Events mengelompokkan producer per topic (satu writer per topic).
type Events struct {
	Created       Publisher
	Cancelled     Publisher
	StatusChanged Publisher
}

type Service struct {
	Store       Store
	Gateway     gateway.Gateway
	Events      Events
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

type CreateOrderInput struct {
	Buyer       gateway.Buyer
	SellerID    string
	Items       []orders.ItemInput
	ShippingFee int64
	AdminFee    int64
	Discount    int64
	AddressID   string
	Courier     string
	Note        string
	Method      orders.Method
}

type CreateOrderResult struct {
	Order   *orders.Order   `json:"order"`
	Payment *orders.Payment `json:"payment"`
}

// kodeAttempts: berapa kali coba ulang saat kode pesanan tabrakan di unique index.
const kodeAttempts = 3

// CreateOrder: validasi -> snapshot harga -> branch cash/non-cash -> tulis
// atomik. Untuk non-cash, sesi checkout gateway dibuat sebelum insert; kalau
// kode tabrakan, sesi dibuat ulang dengan kode baru (sesi lama dibiarkan
// kadaluarsa sendiri di gateway).
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	if len(in.Items) == 0 {
		return nil, orders.ErrEmptyItems
	}
	if !in.Method.Valid() {
		return nil, fmt.Errorf("%w: %s", orders.ErrInvalidMethod, in.Method)
	}

	items, subtotal, err := s.Store.PriceItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &orders.Order{
		ID:          uuid.NewString(),
		BuyerID:     in.Buyer.ID,
		SellerID:    in.SellerID,
		Items:       items,
		Subtotal:    subtotal,
		ShippingFee: in.ShippingFee,
		AdminFee:    in.AdminFee,
		Discount:    in.Discount,
		Total:       subtotal + in.ShippingFee + in.AdminFee - in.Discount,
		AddressID:   in.AddressID,
		Courier:     in.Courier,
		Note:        in.Note,
	}

	isCash := in.Method == orders.MethodCash
	p := &orders.Payment{
		ID:      uuid.NewString(),
		OrderID: o.ID,
		Method:  in.Method,
		Amount:  o.Total,
	}

	if isCash {
		// Cash: langsung diproses, stok dikurangi di transaksi yang sama.
		o.Status = orders.StatusDiproses
		o.StokDikurangi = true
		o.PaidAt = &now
		p.Status = orders.PaymentSuccess
		p.GatewayOrderID = orders.NewPaymentRef(now)
		p.PaidAt = &now
	} else {
		o.Status = orders.StatusMenungguPembayaran
		p.Status = orders.PaymentPending
		exp := now.Add(orders.CheckoutExpiry(in.Method))
		p.ExpiredAt = &exp
	}

	for attempt := 0; ; attempt++ {
		o.Kode = orders.NewOrderCode(s.now())

		if !isCash {
			sess, err := s.Gateway.CreateCheckoutSession(ctx, o, in.Buyer, in.Method)
			if err != nil {
				return nil, err
			}
			p.GatewayOrderID = sess.GatewayOrderID
			p.SnapToken = sess.Token
			p.RedirectURL = sess.RedirectURL
		}

		err = s.Store.CreateOrder(ctx, o, p)
		if err == nil {
			break
		}
		if errors.Is(err, orders.ErrKodeConflict) && attempt < kodeAttempts-1 {
			s.Log.Warn("kode pesanan tabrakan, coba ulang", zap.String("kode", o.Kode))
			continue
		}
		return nil, err
	}

	env := orders.NewEnvelope(orders.EventOrderCreated, s.ServiceName, o.ID, orders.OrderCreatedPayload{
		OrderID:  o.ID,
		Kode:     o.Kode,
		BuyerID:  o.BuyerID,
		SellerID: o.SellerID,
		Status:   o.Status,
		Method:   in.Method,
		Total:    o.Total,
	})
	s.publish(s.Events.Created, o.ID, env)

	return &CreateOrderResult{Order: o, Payment: p}, nil
}

// Cancel: pembatalan oleh pembeli, hanya dari menunggu_pembayaran/diproses.
func (s *Service) Cancel(ctx context.Context, orderID, reason string) (*orders.Order, error) {
	if reason == "" {
		reason = "dibatalkan oleh pembeli"
	}
	o, err := s.Store.CancelOrder(ctx, orderID, reason)
	if err != nil {
		return nil, err
	}

	env := orders.NewEnvelope(orders.EventOrderCancelled, s.ServiceName, o.ID, orders.OrderCancelledPayload{
		OrderID:  o.ID,
		Kode:     o.Kode,
		BuyerID:  o.BuyerID,
		SellerID: o.SellerID,
		Reason:   reason,
	})
	s.publish(s.Events.Cancelled, o.ID, env)
	return o, nil
}

// UpdateStatus: transisi oleh seller. Kurir + resi wajib untuk dikirim.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to orders.Status, courier, tracking string) (*orders.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %s", orders.ErrInvalidStatus, to)
	}
	if to == orders.StatusDikirim && (courier == "" || tracking == "") {
		return nil, orders.ErrCourierRequired
	}

	from, err := s.Store.GetOrderStatus(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o, err := s.Store.UpdateOrderStatus(ctx, orderID, to, courier, tracking)
	if err != nil {
		return nil, err
	}

	env := orders.NewEnvelope(orders.EventOrderStatusChanged, s.ServiceName, o.ID, orders.OrderStatusChangedPayload{
		OrderID:        o.ID,
		Kode:           o.Kode,
		BuyerID:        o.BuyerID,
		From:           from,
		To:             o.Status,
		Courier:        o.Courier,
		TrackingNumber: o.TrackingNumber,
	})
	s.publish(s.Events.StatusChanged, o.ID, env)
	return o, nil
}

func (s *Service) publish(p Publisher, orderID string, env orders.Envelope) {
	if p == nil {
		return
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
