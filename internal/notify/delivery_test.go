package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/avdeenkov/cryptoshop/internal/shop"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeMessenger struct {
	sent    []sentMessage
	failFor map[int64]bool
}

func (m *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string) error {
	if m.failFor[chatID] {
		return errors.New("chat blocked")
	}
	m.sent = append(m.sent, sentMessage{chatID, text})
	return nil
}

type fakeRecipients []int64

func (r fakeRecipients) ListCustomerIDs(context.Context) ([]int64, error) { return r, nil }

func envelopeMessage(t *testing.T, eventType string, payload any) kafkago.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	env := shop.Envelope{
		EventID:      "evt-1",
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test",
		Payload:      raw,
	}
	value, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	return kafkago.Message{Value: value}
}

func TestHandleOrderEventFormatsAdminMessage(t *testing.T) {
	msgr := &fakeMessenger{}
	d := &Deliverer{Service: "test", Messenger: msgr, AdminChatID: 42, Log: zap.NewNop()}

	amount := 500.0
	m := envelopeMessage(t, shop.EventOrderSettled, shop.OrderEventPayload{
		OrderID:      "INV-1-1",
		CustomerID:   7,
		Username:     "alice",
		ProductName:  "Steam topup",
		CustomAmount: &amount,
		PriceAmount:  6.65,
		PriceWithFee: 6.85,
		Status:       shop.StatusPaid,
	})
	if err := d.HandleOrderEvent(context.Background(), m); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(msgr.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(msgr.sent))
	}
	if msgr.sent[0].chatID != 42 {
		t.Errorf("chat id = %d, want 42", msgr.sent[0].chatID)
	}
	for _, want := range []string{"INV-1-1", "Steam topup: 500", "@alice (7)", "6.65"} {
		if !strings.Contains(msgr.sent[0].text, want) {
			t.Errorf("message %q missing %q", msgr.sent[0].text, want)
		}
	}
}

func TestHandleOrderEventSoldOut(t *testing.T) {
	msgr := &fakeMessenger{}
	d := &Deliverer{Service: "test", Messenger: msgr, AdminChatID: 42, Log: zap.NewNop()}

	m := envelopeMessage(t, shop.EventOrderSettled, shop.OrderEventPayload{
		OrderID:     "INV-1-2",
		CustomerID:  7,
		ProductName: "Gift Card",
		Status:      shop.StatusOutOfStock,
		SoldOut:     true,
	})
	if err := d.HandleOrderEvent(context.Background(), m); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(msgr.sent) != 1 || !strings.Contains(msgr.sent[0].text, "sold out") {
		t.Fatalf("sold-out message not delivered: %+v", msgr.sent)
	}
}

func TestHandleOrderEventDeliveryFailureReturnsError(t *testing.T) {
	msgr := &fakeMessenger{failFor: map[int64]bool{42: true}}
	d := &Deliverer{Service: "test", Messenger: msgr, AdminChatID: 42, Log: zap.NewNop()}

	m := envelopeMessage(t, shop.EventOrderExpired, shop.OrderEventPayload{
		OrderID: "INV-1-3", CustomerID: 7, ProductName: "Gift Card", Status: shop.StatusExpired,
	})
	if err := d.HandleOrderEvent(context.Background(), m); err == nil {
		t.Fatal("expected error so the offset is not committed")
	}
}

func TestHandleOrderEventMalformedDropped(t *testing.T) {
	msgr := &fakeMessenger{}
	d := &Deliverer{Service: "test", Messenger: msgr, AdminChatID: 42, Log: zap.NewNop()}

	if err := d.HandleOrderEvent(context.Background(), kafkago.Message{Value: []byte("not json")}); err != nil {
		t.Fatalf("malformed event should be dropped, got %v", err)
	}
	if len(msgr.sent) != 0 {
		t.Errorf("sent = %d, want 0", len(msgr.sent))
	}
}

func TestHandleBroadcastTolerantFanOut(t *testing.T) {
	msgr := &fakeMessenger{failFor: map[int64]bool{2: true}}
	d := &Deliverer{
		Service:    "test",
		Messenger:  msgr,
		Recipients: fakeRecipients{1, 2, 3},
		Log:        zap.NewNop(),
	}

	m := envelopeMessage(t, shop.EventBroadcast, shop.BroadcastPayload{Text: "maintenance tonight"})
	if err := d.HandleBroadcast(context.Background(), m); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(msgr.sent) != 2 {
		t.Fatalf("sent = %d, want 2 (one recipient blocked)", len(msgr.sent))
	}
	for _, s := range msgr.sent {
		if s.text != "maintenance tonight" {
			t.Errorf("text = %q", s.text)
		}
	}
}
