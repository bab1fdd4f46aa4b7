package orders

const (
	TopicOrderReserved       = "order.reserved"
	TopicReservationConflict = "order.reservation.conflict"
	TopicPaymentSubmitted    = "order.payment.submitted"
	TopicReservationExpired  = "order.expired"
	TopicOrderSettled        = "order.settled"
)

var eventTopics = map[string]string{
	EventOrderReserved:       TopicOrderReserved,
	EventReservationConflict: TopicReservationConflict,
	EventPaymentSubmitted:    TopicPaymentSubmitted,
	EventReservationExpired:  TopicReservationExpired,
	EventOrderSettled:        TopicOrderSettled,
}

func TopicFor(eventType string) string { return eventTopics[eventType] }

// Partition key = order_id so every event of one order stays in order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
