package checkout

import (
	"context"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/tanibudaya/order-service/internal/gateway"
	"github.com/tanibudaya/order-service/internal/orders"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) PriceItems(ctx context.Context, items []orders.ItemInput) ([]orders.OrderItem, int64, error) {
	args := m.Called(ctx, items)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]orders.OrderItem), args.Get(1).(int64), args.Error(2)
}

func (m *mockStore) CreateOrder(ctx context.Context, o *orders.Order, p *orders.Payment) error {
	return m.Called(ctx, o, p).Error(0)
}

func (m *mockStore) GetOrderStatus(ctx context.Context, orderID string) (orders.Status, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(orders.Status), args.Error(1)
}

func (m *mockStore) UpdateOrderStatus(ctx context.Context, orderID string, to orders.Status, courier, tracking string) (*orders.Order, error) {
	args := m.Called(ctx, orderID, to, courier, tracking)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

func (m *mockStore) CancelOrder(ctx context.Context, orderID, reason string) (*orders.Order, error) {
	args := m.Called(ctx, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orders.Order), args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, o *orders.Order, buyer gateway.Buyer, method orders.Method) (*gateway.CheckoutSession, error) {
	args := m.Called(ctx, o, buyer, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CheckoutSession), args.Error(1)
}

func (m *mockGateway) CheckTransactionStatus(ctx context.Context, gatewayOrderID string) (*gateway.TransactionStatus, error) {
	args := m.Called(ctx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TransactionStatus), args.Error(1)
}

type capturedEvent struct {
	key   []byte
	value []byte
}

type mockPublisher struct{ events []capturedEvent }

func (m *mockPublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	m.events = append(m.events, capturedEvent{key: key, value: value})
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
}

func testItems() ([]orders.ItemInput, []orders.OrderItem, int64) {
	in := []orders.ItemInput{{ProductID: "prod-1", Qty: 2}}
	priced := []orders.OrderItem{{ProductID: "prod-1", Name: "Beras Organik 5kg", Price: 85000, Qty: 2, Subtotal: 170000}}
	return in, priced, 170000
}

func newService(st *mockStore, gw *mockGateway) (*Service, *mockPublisher, *mockPublisher, *mockPublisher) {
	created, cancelled, status := &mockPublisher{}, &mockPublisher{}, &mockPublisher{}
	svc := &Service{
		Store:       st,
		Gateway:     gw,
		Events:      Events{Created: created, Cancelled: cancelled, StatusChanged: status},
		ServiceName: "order-api-test",
		Log:         zap.NewNop(),
		Now:         fixedNow,
	}
	return svc, created, cancelled, status
}

func TestCreateOrderCash(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, created, _, _ := newService(st, gw)

	in, priced, subtotal := testItems()
	st.On("PriceItems", mock.Anything, in).Return(priced, subtotal, nil)
	st.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	res, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		Buyer:       gateway.Buyer{ID: "buyer-1", Name: "Sari"},
		SellerID:    "seller-1",
		Items:       in,
		ShippingFee: 15000,
		Method:      orders.MethodCash,
	})
	assert.NoError(t, err)

	// cash langsung diproses, stok dikurangi, payment success
	assert.Equal(t, orders.StatusDiproses, res.Order.Status)
	assert.True(t, res.Order.StokDikurangi)
	assert.NotNil(t, res.Order.PaidAt)
	assert.Equal(t, int64(185000), res.Order.Total)
	assert.Equal(t, orders.PaymentSuccess, res.Payment.Status)
	assert.NotNil(t, res.Payment.PaidAt)
	assert.Contains(t, res.Payment.GatewayOrderID, "CASH-")
	assert.Nil(t, res.Payment.ExpiredAt)

	// gateway tidak disentuh untuk cash
	gw.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Len(t, created.events, 1)
}

func TestCreateOrderTransfer(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, created, _, _ := newService(st, gw)

	in, priced, subtotal := testItems()
	st.On("PriceItems", mock.Anything, in).Return(priced, subtotal, nil)
	st.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything, mock.Anything, orders.MethodTransfer).
		Return(&gateway.CheckoutSession{Token: "snap-token-123", RedirectURL: "https://app.sandbox.midtrans.com/snap/v3/abc", GatewayOrderID: "TB-x"}, nil)

	res, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		Buyer:    gateway.Buyer{ID: "buyer-1"},
		SellerID: "seller-1",
		Items:    in,
		Method:   orders.MethodTransfer,
	})
	assert.NoError(t, err)

	assert.Equal(t, orders.StatusMenungguPembayaran, res.Order.Status)
	assert.False(t, res.Order.StokDikurangi)
	assert.Nil(t, res.Order.PaidAt)
	assert.Equal(t, orders.PaymentPending, res.Payment.Status)
	assert.Equal(t, "snap-token-123", res.Payment.SnapToken)
	if assert.NotNil(t, res.Payment.ExpiredAt) {
		assert.Equal(t, fixedNow().Add(24*time.Hour), *res.Payment.ExpiredAt)
	}
	assert.Len(t, created.events, 1)
}

func TestCreateOrderQrisExpiry(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, _, _, _ := newService(st, gw)

	in, priced, subtotal := testItems()
	st.On("PriceItems", mock.Anything, in).Return(priced, subtotal, nil)
	st.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gw.On("CreateCheckoutSession", mock.Anything, mock.Anything, mock.Anything, orders.MethodQris).
		Return(&gateway.CheckoutSession{Token: "tok"}, nil)

	res, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		Buyer: gateway.Buyer{ID: "b"}, SellerID: "s", Items: in, Method: orders.MethodQris,
	})
	assert.NoError(t, err)
	if assert.NotNil(t, res.Payment.ExpiredAt) {
		assert.Equal(t, fixedNow().Add(15*time.Minute), *res.Payment.ExpiredAt)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, _, _, _ := newService(st, gw)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{Method: orders.MethodCash})
	assert.ErrorIs(t, err, orders.ErrEmptyItems)

	in, _, _ := testItems()
	_, err = svc.CreateOrder(context.Background(), CreateOrderInput{Items: in, Method: orders.Method("pulsa")})
	assert.ErrorIs(t, err, orders.ErrInvalidMethod)

	st.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, created, _, _ := newService(st, gw)

	in, _, _ := testItems()
	st.On("PriceItems", mock.Anything, in).Return(nil, int64(0), orders.ErrInsufficientStock)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		Buyer: gateway.Buyer{ID: "b"}, SellerID: "s", Items: in, Method: orders.MethodCash,
	})
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)
	assert.Empty(t, created.events)
}

func TestCreateOrderKodeRetry(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, created, _, _ := newService(st, gw)

	in, priced, subtotal := testItems()
	st.On("PriceItems", mock.Anything, in).Return(priced, subtotal, nil)
	// dua kali tabrakan kode, ketiga sukses
	st.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(orders.ErrKodeConflict).Twice()
	st.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	res, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		Buyer: gateway.Buyer{ID: "b"}, SellerID: "s", Items: in, Method: orders.MethodCash,
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, res.Order.Kode)
	st.AssertNumberOfCalls(t, "CreateOrder", 3)
	assert.Len(t, created.events, 1)
}

func TestCreateOrderKodeRetryExhausted(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, created, _, _ := newService(st, gw)

	in, priced, subtotal := testItems()
	st.On("PriceItems", mock.Anything, in).Return(priced, subtotal, nil)
	st.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything).Return(orders.ErrKodeConflict)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		Buyer: gateway.Buyer{ID: "b"}, SellerID: "s", Items: in, Method: orders.MethodCash,
	})
	assert.ErrorIs(t, err, orders.ErrKodeConflict)
	st.AssertNumberOfCalls(t, "CreateOrder", kodeAttempts)
	assert.Empty(t, created.events)
}

func TestCancel(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, _, cancelled, _ := newService(st, gw)

	o := &orders.Order{ID: "ord-1", Kode: "TB-1", BuyerID: "buyer-1", SellerID: "seller-1", Status: orders.StatusDibatalkan}
	st.On("CancelOrder", mock.Anything, "ord-1", "dibatalkan oleh pembeli").Return(o, nil)

	got, err := svc.Cancel(context.Background(), "ord-1", "")
	assert.NoError(t, err)
	assert.Equal(t, orders.StatusDibatalkan, got.Status)
	assert.Len(t, cancelled.events, 1)
}

func TestCancelNotCancellable(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, _, cancelled, _ := newService(st, gw)

	st.On("CancelOrder", mock.Anything, "ord-1", "berubah pikiran").Return(nil, orders.ErrNotCancellable)

	_, err := svc.Cancel(context.Background(), "ord-1", "berubah pikiran")
	assert.ErrorIs(t, err, orders.ErrNotCancellable)
	assert.Empty(t, cancelled.events)
}

func TestUpdateStatusDikirim(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, _, _, statusEv := newService(st, gw)

	o := &orders.Order{ID: "ord-1", Kode: "TB-1", BuyerID: "buyer-1", Status: orders.StatusDikirim,
		Courier: "JNE", TrackingNumber: "JNE123"}
	st.On("GetOrderStatus", mock.Anything, "ord-1").Return(orders.StatusDiproses, nil)
	st.On("UpdateOrderStatus", mock.Anything, "ord-1", orders.StatusDikirim, "JNE", "JNE123").Return(o, nil)

	got, err := svc.UpdateStatus(context.Background(), "ord-1", orders.StatusDikirim, "JNE", "JNE123")
	assert.NoError(t, err)
	assert.Equal(t, orders.StatusDikirim, got.Status)
	assert.Len(t, statusEv.events, 1)
}

func TestUpdateStatusDikirimTanpaKurir(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, _, _, statusEv := newService(st, gw)

	_, err := svc.UpdateStatus(context.Background(), "ord-1", orders.StatusDikirim, "", "")
	assert.ErrorIs(t, err, orders.ErrCourierRequired)

	_, err = svc.UpdateStatus(context.Background(), "ord-1", orders.StatusDikirim, "JNE", "")
	assert.ErrorIs(t, err, orders.ErrCourierRequired)

	st.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, statusEv.events)
}

func TestUpdateStatusInvalid(t *testing.T) {
	st, gw := &mockStore{}, &mockGateway{}
	svc, _, _, _ := newService(st, gw)

	_, err := svc.UpdateStatus(context.Background(), "ord-1", orders.Status("ngawur"), "", "")
	assert.ErrorIs(t, err, orders.ErrInvalidStatus)
}
