// Package notify publishes order and broadcast events for the admin
// notifier binary to deliver. Publishing is fire-and-forget: a lost
// notification never blocks or fails an order operation.
package notify

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/avdeenkov/cryptoshop/internal/kafka"
	"github.com/avdeenkov/cryptoshop/internal/shop"
)

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Notifier struct {
	producer string
	orders   Publisher
	bcast    Publisher
}

func New(producer string, orders, broadcast Publisher) *Notifier {
	return &Notifier{producer: producer, orders: orders, bcast: broadcast}
}

func (n *Notifier) OrderOpened(o shop.Order)  { n.publishOrder(shop.EventOrderOpened, o, false) }
func (n *Notifier) OrderExpired(o shop.Order) { n.publishOrder(shop.EventOrderExpired, o, false) }

func (n *Notifier) OrderSettled(o shop.Order, soldOut bool) {
	n.publishOrder(shop.EventOrderSettled, o, soldOut)
}

func (n *Notifier) Broadcast(text string) {
	env := n.envelope(shop.EventBroadcast, "", kafka.MustMarshal(shop.BroadcastPayload{Text: text}))
	n.bcast.Publish([]byte(env.EventID), kafka.MustMarshal(env))
}

func (n *Notifier) publishOrder(eventType string, o shop.Order, soldOut bool) {
	payload := shop.OrderEventPayload{
		OrderID:      o.ID,
		CustomerID:   o.CustomerID,
		Username:     o.Username,
		FirstName:    o.FirstName,
		ProductName:  o.ProductName,
		CustomAmount: o.CustomAmount,
		PriceAmount:  o.PriceAmount,
		PriceWithFee: o.PriceWithFee,
		Status:       o.Status,
		SoldOut:      soldOut,
	}
	env := n.envelope(eventType, o.ID, kafka.MustMarshal(payload))
	n.orders.Publish(shop.PartitionKey(o.ID), kafka.MustMarshal(env))
}

func (n *Notifier) envelope(eventType, correlationID string, payload []byte) shop.Envelope {
	return shop.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.producer,
		CorrelationID: correlationID,
		Payload:       payload,
	}
}
