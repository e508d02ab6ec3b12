package orders

const (
	TopicOrderPlaced      = "orders.placed"
	TopicPaymentCompleted = "orders.payment.completed"
)

// Partition key = order id so all events for one order keep their ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
