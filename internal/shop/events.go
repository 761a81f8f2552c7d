package shop

import (
	"encoding/json"
	"time"
)

const (
	EventOrderOpened  = "OrderOpened"
	EventOrderSettled = "OrderSettled"
	EventOrderExpired = "OrderExpired"
	EventBroadcast    = "Broadcast"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

// OrderEventPayload is the order snapshot carried by every order event.
type OrderEventPayload struct {
	OrderID      string   `json:"order_id"`
	CustomerID   int64    `json:"customer_id"`
	Username     string   `json:"username,omitempty"`
	FirstName    string   `json:"first_name,omitempty"`
	ProductName  string   `json:"product_name"`
	CustomAmount *float64 `json:"custom_amount,omitempty"`
	PriceAmount  float64  `json:"price_amount"`
	PriceWithFee float64  `json:"price_with_fee"`
	Status       Status   `json:"status"`
	SoldOut      bool     `json:"sold_out,omitempty"`
}

type BroadcastPayload struct {
	Text string `json:"text"`
}
