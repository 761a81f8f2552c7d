package shop

const (
	TopicOrderEvents = "shop.order.events"
	TopicBroadcast   = "shop.broadcast"
)

// Partition key = order_id so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
