package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tanibudaya/order-service/internal/orders"
)

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name              string
		transactionStatus string
		fraudStatus       string
		want              orders.PaymentStatus
	}{
		{"capture accept", "capture", "accept", orders.PaymentSuccess},
		{"capture challenge tetap pending", "capture", "challenge", orders.PaymentPending},
		{"capture tanpa fraud_status", "capture", "", orders.PaymentPending},
		{"settlement", "settlement", "", orders.PaymentSuccess},
		{"settlement abaikan fraud", "settlement", "deny", orders.PaymentSuccess},
		{"pending", "pending", "", orders.PaymentPending},
		{"authorize", "authorize", "accept", orders.PaymentPending},
		{"expire", "expire", "", orders.PaymentExpired},
		{"deny", "deny", "", orders.PaymentFailed},
		{"cancel", "cancel", "", orders.PaymentFailed},
		{"failure", "failure", "", orders.PaymentFailed},
		{"status asing jadi pending", "refund", "", orders.PaymentPending},
		{"kosong jadi pending", "", "", orders.PaymentPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveStatus(tt.transactionStatus, tt.fraudStatus))
		})
	}
}
