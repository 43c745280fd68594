package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderPaid          = "OrderPaid"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope membungkus payload jadi envelope v1 siap publish.
func NewEnvelope(eventType, producer, orderID string, payload any) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err) // payload event selalu struct milik kita sendiri
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: orderID,
		Payload:       data,
	}
}

// ---- Payload per event ----

type OrderCreatedPayload struct {
	OrderID  string `json:"order_id"`
	Kode     string `json:"kode"`
	BuyerID  string `json:"buyer_id"`
	SellerID string `json:"seller_id"`
	Status   Status `json:"status"`
	Method   Method `json:"method"`
	Total    int64  `json:"total"`
}

type OrderPaidPayload struct {
	OrderID string `json:"order_id"`
	Kode    string `json:"kode"`
	BuyerID string `json:"buyer_id"`
	Channel string `json:"channel,omitempty"`
	Amount  int64  `json:"amount"`
}

type OrderCancelledPayload struct {
	OrderID  string `json:"order_id"`
	Kode     string `json:"kode"`
	BuyerID  string `json:"buyer_id"`
	SellerID string `json:"seller_id"`
	Reason   string `json:"reason"`
}

type OrderStatusChangedPayload struct {
	OrderID        string `json:"order_id"`
	Kode           string `json:"kode"`
	BuyerID        string `json:"buyer_id"`
	From           Status `json:"from"`
	To             Status `json:"to"`
	Courier        string `json:"courier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}
