package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/avdeenkov/cryptoshop/internal/kafka"
	"github.com/avdeenkov/cryptoshop/internal/redisx"
	"github.com/avdeenkov/cryptoshop/internal/shop"
)

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type RecipientSource interface {
	ListCustomerIDs(ctx context.Context) ([]int64, error)
}

// Deliverer turns consumed events into chat messages. Redis SETNX on the
// event id gives at-least-once consumption an exactly-once delivery window.
type Deliverer struct {
	Service     string
	Messenger   Messenger
	Recipients  RecipientSource
	Dedup       *redis.Client
	AdminChatID int64
	Log         *zap.Logger
}

func (d *Deliverer) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	env, payload, fresh, err := d.unwrap(ctx, m)
	if err != nil || !fresh {
		return err
	}

	var text string
	switch env.EventType {
	case shop.EventOrderOpened:
		text = fmt.Sprintf("New order %s\nProduct: %s\nCustomer: %s\nAmount: %.2f (%.2f with fee)",
			payload.OrderID, productLine(payload), customerLine(payload),
			payload.PriceAmount, payload.PriceWithFee)
	case shop.EventOrderSettled:
		if payload.SoldOut {
			text = fmt.Sprintf("Order %s PAID but product sold out, manual resolution needed\nProduct: %s\nCustomer: %s",
				payload.OrderID, productLine(payload), customerLine(payload))
		} else {
			text = fmt.Sprintf("Order %s paid\nProduct: %s\nCustomer: %s\nAmount: %.2f",
				payload.OrderID, productLine(payload), customerLine(payload), payload.PriceAmount)
		}
	case shop.EventOrderExpired:
		text = fmt.Sprintf("Order %s expired unpaid\nProduct: %s\nCustomer: %s",
			payload.OrderID, productLine(payload), customerLine(payload))
	default:
		d.Log.Warn("unknown order event type", zap.String("event_type", env.EventType))
		return nil
	}

	if err := d.Messenger.SendMessage(ctx, d.AdminChatID, text); err != nil {
		return fmt.Errorf("deliver %s for %s: %w", env.EventType, payload.OrderID, err)
	}
	return nil
}

// HandleBroadcast fans the message out to every registered customer. A
// failed send is logged and skipped so one blocked recipient cannot stall
// the rest.
func (d *Deliverer) HandleBroadcast(ctx context.Context, m kafkago.Message) error {
	var env shop.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		d.Log.Warn("malformed broadcast event dropped", zap.Error(err))
		return nil
	}
	fresh, err := d.claim(ctx, env.EventID)
	if err != nil || !fresh {
		return err
	}
	payload, err := kafka.UnwrapPayload[shop.BroadcastPayload](env.Payload)
	if err != nil {
		d.Log.Warn("malformed broadcast payload dropped", zap.Error(err))
		return nil
	}

	ids, err := d.Recipients.ListCustomerIDs(ctx)
	if err != nil {
		return fmt.Errorf("list broadcast recipients: %w", err)
	}

	sent, failed := 0, 0
	for _, id := range ids {
		if err := d.Messenger.SendMessage(ctx, id, payload.Text); err != nil {
			failed++
			d.Log.Warn("broadcast send failed", zap.Int64("customer_id", id), zap.Error(err))
			continue
		}
		sent++
	}
	d.Log.Info("broadcast delivered",
		zap.String("event_id", env.EventID), zap.Int("sent", sent), zap.Int("failed", failed))
	return nil
}

func (d *Deliverer) unwrap(ctx context.Context, m kafkago.Message) (shop.Envelope, shop.OrderEventPayload, bool, error) {
	var env shop.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		d.Log.Warn("malformed order event dropped", zap.Error(err))
		return env, shop.OrderEventPayload{}, false, nil
	}
	fresh, err := d.claim(ctx, env.EventID)
	if err != nil || !fresh {
		return env, shop.OrderEventPayload{}, false, err
	}
	payload, err := kafka.UnwrapPayload[shop.OrderEventPayload](env.Payload)
	if err != nil {
		d.Log.Warn("malformed order payload dropped", zap.Error(err))
		return env, payload, false, nil
	}
	return env, payload, true, nil
}

// claim marks the event processed. False means another worker already
// delivered it.
func (d *Deliverer) claim(ctx context.Context, eventID string) (bool, error) {
	if d.Dedup == nil || eventID == "" {
		return true, nil
	}
	key := fmt.Sprintf(redisx.KeyDedup, d.Service, eventID)
	ok, err := d.Dedup.SetNX(ctx, key, 1, redisx.TTLDedup).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim: %w", err)
	}
	return ok, nil
}

func productLine(p shop.OrderEventPayload) string {
	if p.CustomAmount != nil {
		return fmt.Sprintf("%s: %g", p.ProductName, *p.CustomAmount)
	}
	return p.ProductName
}

func customerLine(p shop.OrderEventPayload) string {
	if p.Username != "" {
		return fmt.Sprintf("@%s (%d)", p.Username, p.CustomerID)
	}
	if p.FirstName != "" {
		return fmt.Sprintf("%s (%d)", p.FirstName, p.CustomerID)
	}
	return fmt.Sprintf("%d", p.CustomerID)
}
