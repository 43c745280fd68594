package payments

import "github.com/tanibudaya/order-service/internal/orders"

// ResolveStatus memetakan transaction_status + fraud_status gateway ke status
// pembayaran internal. Urutan precedence:
//   (capture + fraud accept) atau settlement -> success
//   pending / authorize                      -> pending
//   expire                                   -> expired
//   deny / cancel / failure                  -> failed
// Status yang tidak dikenal dibiarkan pending supaya poll berikutnya mengecek lagi.
func ResolveStatus(transactionStatus, fraudStatus string) orders.PaymentStatus {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "accept" {
			return orders.PaymentSuccess
		}
		return orders.PaymentPending
	case "settlement":
		return orders.PaymentSuccess
	case "pending", "authorize":
		return orders.PaymentPending
	case "expire":
		return orders.PaymentExpired
	case "deny", "cancel", "failure":
		return orders.PaymentFailed
	default:
		return orders.PaymentPending
	}
}
