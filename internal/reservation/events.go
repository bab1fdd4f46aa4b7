package reservation

import (
	"context"

	kafkax "github.com/ariefcatur/go-unique-checkout/internal/kafka"
	"github.com/ariefcatur/go-unique-checkout/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// publish emits a lifecycle event after the state change committed. It is
// fire-and-forget: a lost event never undoes a transition.
func (s *Service) publish(ctx context.Context, eventType, key string, payload any) {
	if s.Events == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.Clock(),
		Producer:      s.Producer,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: key,
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Events.Publish(orders.TopicFor(eventType), orders.PartitionKey(key), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
