package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	kafkax "github.com/tanibudaya/order-service/internal/kafka"
	"github.com/tanibudaya/order-service/internal/orders"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) Insert(ctx context.Context, n *Notification) error {
	return m.Called(ctx, n).Error(0)
}

func newService(t *testing.T, st *mockStore) *Service {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Service{Store: st, RDB: rdb, Log: zap.NewNop()}
}

func paidMessage() kafkago.Message {
	env := orders.NewEnvelope(orders.EventOrderPaid, "order-api-test", "ord-1", orders.OrderPaidPayload{
		OrderID: "ord-1",
		Kode:    "TB-20250601-0001",
		BuyerID: "buyer-1",
		Channel: "GoPay",
		Amount:  185000,
	})
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestHandleOrderPaid(t *testing.T) {
	st := &mockStore{}
	svc := newService(t, st)

	st.On("Insert", mock.Anything, mock.MatchedBy(func(n *Notification) bool {
		return n.UserID == "buyer-1" && n.OrderID == "ord-1" && n.Title == "Pembayaran diterima"
	})).Return(nil)

	assert.NoError(t, svc.HandleOrderPaid(context.Background(), paidMessage()))
	st.AssertNumberOfCalls(t, "Insert", 1)
}

func TestHandleOrderPaidRedeliverySetelahInsertGagal(t *testing.T) {
	st := &mockStore{}
	svc := newService(t, st)

	st.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	st.On("Insert", mock.Anything, mock.Anything).Return(nil)

	m := paidMessage()

	// insert gagal: handler balikin error supaya offset tidak di-commit
	assert.Error(t, svc.HandleOrderPaid(context.Background(), m))

	// pesan yang sama dikirim ulang: harus diproses lagi, bukan ke-dedup
	assert.NoError(t, svc.HandleOrderPaid(context.Background(), m))
	st.AssertNumberOfCalls(t, "Insert", 2)

	// setelah sukses, pengiriman ulang berikutnya baru ke-dedup
	assert.NoError(t, svc.HandleOrderPaid(context.Background(), m))
	st.AssertNumberOfCalls(t, "Insert", 2)
}

func TestHandleOrderCreatedKeSeller(t *testing.T) {
	st := &mockStore{}
	svc := newService(t, st)

	env := orders.NewEnvelope(orders.EventOrderCreated, "order-api-test", "ord-1", orders.OrderCreatedPayload{
		OrderID:  "ord-1",
		Kode:     "TB-20250601-0001",
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Status:   orders.StatusDiproses,
		Method:   orders.MethodCash,
		Total:    185000,
	})
	st.On("Insert", mock.Anything, mock.MatchedBy(func(n *Notification) bool {
		return n.UserID == "seller-1" && n.Title == "Pesanan baru"
	})).Return(nil)

	m := kafkago.Message{Value: kafkax.MustMarshal(env)}
	assert.NoError(t, svc.HandleOrderCreated(context.Background(), m))

	// duplikat event yang sudah sukses tidak bikin notifikasi kedua
	assert.NoError(t, svc.HandleOrderCreated(context.Background(), m))
	st.AssertNumberOfCalls(t, "Insert", 1)
}

func TestHandleOrderStatusChangedDikirim(t *testing.T) {
	st := &mockStore{}
	svc := newService(t, st)

	env := orders.NewEnvelope(orders.EventOrderStatusChanged, "order-api-test", "ord-1", orders.OrderStatusChangedPayload{
		OrderID:        "ord-1",
		Kode:           "TB-20250601-0001",
		BuyerID:        "buyer-1",
		From:           orders.StatusDiproses,
		To:             orders.StatusDikirim,
		Courier:        "JNE",
		TrackingNumber: "JNE123",
	})
	st.On("Insert", mock.Anything, mock.MatchedBy(func(n *Notification) bool {
		return n.UserID == "buyer-1" && n.Title == "Pesanan dikirim"
	})).Return(nil)

	m := kafkago.Message{Value: kafkax.MustMarshal(env)}
	assert.NoError(t, svc.HandleOrderStatusChanged(context.Background(), m))
	st.AssertNumberOfCalls(t, "Insert", 1)
}

func TestHandleEventRusakDilewati(t *testing.T) {
	st := &mockStore{}
	svc := newService(t, st)

	// envelope rusak di-skip tanpa error supaya offset tetap maju
	m := kafkago.Message{Value: []byte(`{bukan json`)}
	assert.NoError(t, svc.HandleOrderPaid(context.Background(), m))
	st.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}
