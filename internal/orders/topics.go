package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderPaid          = "order.paid"
	TopicOrderCancelled     = "order.cancelled"
	TopicOrderStatusChanged = "order.status_changed"
)

// Partition key = order_id, supaya semua event 1 pesanan maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
