// Package lifecycle drives an order from creation to exactly one terminal
// state. The in-process expiry timer is the only authority for the payment
// deadline; provider status polls can settle an order but never expire it.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/avdeenkov/cryptoshop/internal/payment"
	"github.com/avdeenkov/cryptoshop/internal/pricing"
	"github.com/avdeenkov/cryptoshop/internal/shop"
)

type OrderStore interface {
	Insert(ctx context.Context, o *shop.Order) error
	Get(ctx context.Context, orderID string) (*shop.Order, error)
	ListPending(ctx context.Context) ([]shop.Order, error)
	Expire(ctx context.Context, orderID string) (bool, error)
	Settle(ctx context.Context, orderID string, productID int64, fixed bool, paidAt time.Time) (shop.SettleOutcome, error)
}

type ProductStore interface {
	GetActive(ctx context.Context, id int64) (shop.Product, error)
}

type Gateway interface {
	CreateInvoice(ctx context.Context, baseAmount float64, description string) (*payment.Invoice, error)
	CheckStatus(ctx context.Context, providerID string) payment.InvoiceStatus
}

// Notifier delivers best-effort admin notifications. Implementations must
// not block.
type Notifier interface {
	OrderOpened(o shop.Order)
	OrderSettled(o shop.Order, soldOut bool)
	OrderExpired(o shop.Order)
}

type OpenRequest struct {
	CustomerID     int64
	Username       string
	FirstName      string
	ProductID      int64
	VariableAmount *float64
}

type OpenResult struct {
	Order     shop.Order
	PayURL    string
	ExpiresAt time.Time
}

type Manager struct {
	orders   OrderStore
	products ProductStore
	pricer   *pricing.Engine
	gateway  Gateway
	notifier Notifier
	log      *zap.Logger
	metrics  *Metrics

	ttl time.Duration
	now func() time.Time
	seq atomic.Int64

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewManager(orders OrderStore, products ProductStore, pricer *pricing.Engine,
	gateway Gateway, notifier Notifier, log *zap.Logger, metrics *Metrics) *Manager {
	return &Manager{
		orders:   orders,
		products: products,
		pricer:   pricer,
		gateway:  gateway,
		notifier: notifier,
		log:      log,
		metrics:  metrics,
		ttl:      payment.InvoiceTTL,
		now:      func() time.Time { return time.Now().UTC() },
		timers:   map[string]*time.Timer{},
	}
}

// OpenOrder quotes the product, opens a provider invoice and only then
// persists the order. A failure at any step leaves no partial state behind.
func (m *Manager) OpenOrder(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	product, err := m.products.GetActive(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	// A stray amount on a FIXED product must not turn it into a variable
	// order, so it is dropped before anything is quoted or persisted.
	variableAmount := req.VariableAmount
	if product.Kind == shop.KindFixed {
		variableAmount = nil
	}

	quote, err := m.pricer.Quote(ctx, product, variableAmount)
	if err != nil {
		return nil, err
	}

	orderID := m.newOrderID()
	inv, err := m.gateway.CreateInvoice(ctx, quote.Base, invoiceDescription(product.Name, variableAmount))
	if err != nil {
		m.log.Warn("invoice creation failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	order := shop.Order{
		ID:                orderID,
		CustomerID:        req.CustomerID,
		Username:          req.Username,
		FirstName:         req.FirstName,
		ProductID:         product.ID,
		ProductName:       product.Name,
		ProductKind:       product.Kind,
		CustomAmount:      variableAmount,
		PriceAmount:       quote.Base,
		PriceWithFee:      inv.AmountWithFee,
		ProviderInvoiceID: inv.ProviderID,
		Status:            shop.StatusPending,
		CreatedAt:         m.now(),
	}
	if err := m.orders.Insert(ctx, &order); err != nil {
		m.log.Error("order insert failed after invoice creation",
			zap.String("order_id", orderID),
			zap.String("provider_invoice_id", inv.ProviderID),
			zap.Error(err))
		return nil, err
	}

	m.metrics.orderOpened()
	m.notifier.OrderOpened(order)
	m.scheduleExpiry(order.ID, order.CreatedAt.Add(m.ttl))

	m.log.Info("order opened",
		zap.String("order_id", order.ID),
		zap.Int64("customer_id", order.CustomerID),
		zap.Float64("amount", order.PriceAmount))
	return &OpenResult{Order: order, PayURL: inv.PayURL, ExpiresAt: inv.ExpiresAt}, nil
}

// CheckPayment polls the provider and settles the order if it was paid.
// The call is idempotent: once the order is terminal it reports the stored
// state without touching the provider again. A provider-side EXPIRED or
// UNKNOWN leaves the order PENDING for the timer to resolve.
func (m *Manager) CheckPayment(ctx context.Context, orderID string) (*shop.Order, error) {
	order, err := m.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return order, nil
	}

	status := m.gateway.CheckStatus(ctx, order.ProviderInvoiceID)
	if status != payment.InvoicePaid {
		return order, nil
	}

	paidAt := m.now()
	outcome, err := m.orders.Settle(ctx, order.ID, order.ProductID, order.ProductKind == shop.KindFixed, paidAt)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case shop.SettleWon:
		m.cancelExpiry(order.ID)
		order.Status = shop.StatusPaid
		order.PaidAt = &paidAt
		m.metrics.orderSettled(string(shop.StatusPaid))
		m.notifier.OrderSettled(*order, false)
		m.log.Info("order paid", zap.String("order_id", order.ID))
	case shop.SettleSoldOut:
		m.cancelExpiry(order.ID)
		order.Status = shop.StatusOutOfStock
		m.metrics.orderSettled(string(shop.StatusOutOfStock))
		m.notifier.OrderSettled(*order, true)
		m.log.Warn("order paid but product sold out", zap.String("order_id", order.ID))
	case shop.SettleLost:
		// Another path resolved the order first; report what it decided.
		return m.orders.Get(ctx, order.ID)
	}
	return order, nil
}

// ExpireIfPending is the timer callback. The store-side conditional update
// makes it a no-op against an already settled order.
func (m *Manager) ExpireIfPending(ctx context.Context, orderID string) {
	m.mu.Lock()
	delete(m.timers, orderID)
	m.mu.Unlock()

	expired, err := m.orders.Expire(ctx, orderID)
	if err != nil {
		m.log.Error("order expiry failed", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if !expired {
		return
	}

	m.metrics.orderExpired()
	if order, err := m.orders.Get(ctx, orderID); err == nil {
		m.notifier.OrderExpired(*order)
	}
	m.log.Info("order expired", zap.String("order_id", orderID))
}

// Resume reschedules expiry timers for orders that were PENDING when the
// process last stopped. Orders already past their deadline expire right away.
func (m *Manager) Resume(ctx context.Context) error {
	pending, err := m.orders.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}
	for _, o := range pending {
		m.scheduleExpiry(o.ID, o.CreatedAt.Add(m.ttl))
	}
	if len(pending) > 0 {
		m.log.Info("resumed pending orders", zap.Int("count", len(pending)))
	}
	return nil
}

// Stop cancels all in-process timers. Pending orders pick their deadlines
// back up via Resume on the next start.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) scheduleExpiry(orderID string, deadline time.Time) {
	delay := deadline.Sub(m.now())
	if delay < 0 {
		delay = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.timers[orderID]; ok {
		old.Stop()
	}
	m.timers[orderID] = time.AfterFunc(delay, func() {
		m.ExpireIfPending(context.Background(), orderID)
	})
}

func (m *Manager) cancelExpiry(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[orderID]; ok {
		t.Stop()
		delete(m.timers, orderID)
	}
}

func (m *Manager) newOrderID() string {
	return fmt.Sprintf("INV-%d-%d", m.now().UnixNano(), m.seq.Add(1))
}

func invoiceDescription(productName string, variableAmount *float64) string {
	if variableAmount != nil {
		return fmt.Sprintf("%s: %g", productName, *variableAmount)
	}
	return productName
}
