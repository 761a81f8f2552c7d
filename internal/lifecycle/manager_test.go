package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/avdeenkov/cryptoshop/internal/memory"
	"github.com/avdeenkov/cryptoshop/internal/payment"
	"github.com/avdeenkov/cryptoshop/internal/pricing"
	"github.com/avdeenkov/cryptoshop/internal/shop"
)

type fakeGateway struct {
	mu         sync.Mutex
	status     payment.InvoiceStatus
	failCreate bool
	created    int
	checks     int
}

func (g *fakeGateway) CreateInvoice(_ context.Context, base float64, _ string) (*payment.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate {
		return nil, payment.ErrGatewayUnavailable
	}
	g.created++
	return &payment.Invoice{
		ProviderID:    fmt.Sprintf("prov-%d", g.created),
		PayURL:        "https://pay.example/" + fmt.Sprint(g.created),
		AmountWithFee: pricing.AddFee(base),
		ExpiresAt:     time.Now().Add(payment.InvoiceTTL),
	}, nil
}

func (g *fakeGateway) CheckStatus(context.Context, string) payment.InvoiceStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	return g.status
}

func (g *fakeGateway) setStatus(s payment.InvoiceStatus) {
	g.mu.Lock()
	g.status = s
	g.mu.Unlock()
}

func (g *fakeGateway) checkCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checks
}

type fakeNotifier struct {
	mu      sync.Mutex
	opened  []string
	settled []string
	expired []string
	soldOut int
}

func (n *fakeNotifier) OrderOpened(o shop.Order) {
	n.mu.Lock()
	n.opened = append(n.opened, o.ID)
	n.mu.Unlock()
}

func (n *fakeNotifier) OrderSettled(o shop.Order, soldOut bool) {
	n.mu.Lock()
	n.settled = append(n.settled, o.ID)
	if soldOut {
		n.soldOut++
	}
	n.mu.Unlock()
}

func (n *fakeNotifier) OrderExpired(o shop.Order) {
	n.mu.Lock()
	n.expired = append(n.expired, o.ID)
	n.mu.Unlock()
}

type coeffs map[shop.CoefficientType]float64

func (c coeffs) Get(_ context.Context, t shop.CoefficientType) (float64, error) {
	if v, ok := c[t]; ok {
		return v, nil
	}
	return shop.DefaultCoefficients[t], nil
}

func newTestManager(t *testing.T, products *memory.ProductStore, gw *fakeGateway) (*Manager, *memory.OrderStore, *fakeNotifier) {
	t.Helper()
	orders := memory.NewOrderStore(products)
	notifier := &fakeNotifier{}
	m := NewManager(orders, products, &pricing.Engine{Coefficients: coeffs{}},
		gw, notifier, zap.NewNop(), nil)
	t.Cleanup(m.Stop)
	return m, orders, notifier
}

func fixedProduct(id int64, stock int) shop.Product {
	return shop.Product{ID: id, Name: "Gift Card", Price: 5, Stock: stock, Kind: shop.KindFixed, Active: true}
}

func TestOpenOrderGatewayFailureLeavesNoOrder(t *testing.T) {
	gw := &fakeGateway{failCreate: true}
	m, orders, notifier := newTestManager(t, memory.NewProductStore(fixedProduct(1, 3)), gw)

	_, err := m.OpenOrder(context.Background(), OpenRequest{CustomerID: 7, ProductID: 1})
	if !errors.Is(err, payment.ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}

	pending, _ := orders.ListPending(context.Background())
	if len(pending) != 0 {
		t.Errorf("pending orders = %d, want 0", len(pending))
	}
	if len(notifier.opened) != 0 {
		t.Errorf("opened notifications = %d, want 0", len(notifier.opened))
	}
}

func TestOpenOrderUnknownProduct(t *testing.T) {
	m, _, _ := newTestManager(t, memory.NewProductStore(), &fakeGateway{})
	if _, err := m.OpenOrder(context.Background(), OpenRequest{ProductID: 99}); !errors.Is(err, shop.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCheckPaymentPendingStatuses(t *testing.T) {
	for _, status := range []payment.InvoiceStatus{payment.InvoiceActive, payment.InvoiceExpired, payment.InvoiceUnknown} {
		gw := &fakeGateway{status: status}
		m, _, _ := newTestManager(t, memory.NewProductStore(fixedProduct(1, 3)), gw)

		res, err := m.OpenOrder(context.Background(), OpenRequest{CustomerID: 7, ProductID: 1})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		got, err := m.CheckPayment(context.Background(), res.Order.ID)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if got.Status != shop.StatusPending {
			t.Errorf("provider status %s: order status = %s, want PENDING", status, got.Status)
		}
	}
}

func TestCheckPaymentSettlesOnce(t *testing.T) {
	gw := &fakeGateway{status: payment.InvoicePaid}
	products := memory.NewProductStore(fixedProduct(1, 2))
	m, _, notifier := newTestManager(t, products, gw)

	res, err := m.OpenOrder(context.Background(), OpenRequest{CustomerID: 7, ProductID: 1})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	got, err := m.CheckPayment(context.Background(), res.Order.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got.Status != shop.StatusPaid {
		t.Fatalf("status = %s, want PAID", got.Status)
	}
	if got.PaidAt == nil {
		t.Error("paid_at not set")
	}

	checksAfterSettle := gw.checkCount()
	again, err := m.CheckPayment(context.Background(), res.Order.ID)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if again.Status != shop.StatusPaid {
		t.Errorf("second check status = %s", again.Status)
	}
	if gw.checkCount() != checksAfterSettle {
		t.Error("terminal order still polled the provider")
	}

	if stock, _ := products.Stock(context.Background(), 1); stock != 1 {
		t.Errorf("stock = %d, want 1", stock)
	}
	if len(notifier.settled) != 1 {
		t.Errorf("settled notifications = %d, want 1", len(notifier.settled))
	}
}

func TestFixedOrderIgnoresStrayAmount(t *testing.T) {
	gw := &fakeGateway{status: payment.InvoicePaid}
	products := memory.NewProductStore(fixedProduct(1, 3))
	m, _, _ := newTestManager(t, products, gw)

	res, err := m.OpenOrder(context.Background(), OpenRequest{
		CustomerID: 7, ProductID: 1, VariableAmount: ptr(5),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if res.Order.CustomAmount != nil {
		t.Errorf("custom amount persisted for a fixed product: %v", *res.Order.CustomAmount)
	}
	if res.Order.ProductKind != shop.KindFixed {
		t.Errorf("product kind = %s, want FIXED", res.Order.ProductKind)
	}

	got, err := m.CheckPayment(context.Background(), res.Order.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got.Status != shop.StatusPaid {
		t.Fatalf("status = %s, want PAID", got.Status)
	}
	if stock, _ := products.Stock(context.Background(), 1); stock != 2 {
		t.Errorf("stock = %d, want 2 (fixed settlement must take a unit)", stock)
	}
}

func ptr(v float64) *float64 { return &v }

func TestCheckPaymentLastUnitContention(t *testing.T) {
	gw := &fakeGateway{status: payment.InvoicePaid}
	products := memory.NewProductStore(fixedProduct(1, 1))
	m, _, notifier := newTestManager(t, products, gw)

	resA, err := m.OpenOrder(context.Background(), OpenRequest{CustomerID: 1, ProductID: 1})
	if err != nil {
		t.Fatal(err)
	}
	resB, err := m.OpenOrder(context.Background(), OpenRequest{CustomerID: 2, ProductID: 1})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]shop.Status, 2)
	for i, id := range []string{resA.Order.ID, resB.Order.ID} {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := m.CheckPayment(context.Background(), id)
			if err != nil {
				t.Errorf("check %s: %v", id, err)
				return
			}
			results[i] = o.Status
		}()
	}
	wg.Wait()

	paid, soldOut := 0, 0
	for _, s := range results {
		switch s {
		case shop.StatusPaid:
			paid++
		case shop.StatusOutOfStock:
			soldOut++
		}
	}
	if paid != 1 || soldOut != 1 {
		t.Fatalf("outcomes = %v, want exactly one PAID and one OUT_OF_STOCK", results)
	}
	if stock, _ := products.Stock(context.Background(), 1); stock != 0 {
		t.Errorf("stock = %d, want 0", stock)
	}
	if notifier.soldOut != 1 {
		t.Errorf("sold-out notifications = %d, want 1", notifier.soldOut)
	}
}

func TestExpiryVsSettlementSingleWinner(t *testing.T) {
	gw := &fakeGateway{status: payment.InvoicePaid}
	products := memory.NewProductStore(fixedProduct(1, 5))
	m, orders, _ := newTestManager(t, products, gw)

	res, err := m.OpenOrder(context.Background(), OpenRequest{CustomerID: 7, ProductID: 1})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.ExpireIfPending(context.Background(), res.Order.ID)
	}()
	go func() {
		defer wg.Done()
		_, _ = m.CheckPayment(context.Background(), res.Order.ID)
	}()
	wg.Wait()

	final, err := orders.Get(context.Background(), res.Order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !final.Status.Terminal() {
		t.Fatalf("status = %s, want terminal", final.Status)
	}

	stock, _ := products.Stock(context.Background(), 1)
	switch final.Status {
	case shop.StatusPaid:
		if stock != 4 {
			t.Errorf("stock = %d, want 4 after a paid settlement", stock)
		}
	case shop.StatusExpired:
		if stock != 5 {
			t.Errorf("stock = %d, want 5 after expiry", stock)
		}
	default:
		t.Errorf("unexpected final status %s", final.Status)
	}
}

func TestTimerExpiresPendingOrder(t *testing.T) {
	gw := &fakeGateway{status: payment.InvoiceActive}
	m, orders, notifier := newTestManager(t, memory.NewProductStore(fixedProduct(1, 3)), gw)
	m.ttl = 20 * time.Millisecond

	res, err := m.OpenOrder(context.Background(), OpenRequest{CustomerID: 7, ProductID: 1})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		o, err := orders.Get(context.Background(), res.Order.ID)
		if err != nil {
			t.Fatal(err)
		}
		if o.Status == shop.StatusExpired {
			notifier.mu.Lock()
			expired := len(notifier.expired)
			notifier.mu.Unlock()
			if expired != 1 {
				t.Errorf("expired notifications = %d, want 1", expired)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("order never expired")
}

func TestResumeExpiresOverdueOrders(t *testing.T) {
	products := memory.NewProductStore(fixedProduct(1, 3))
	orders := memory.NewOrderStore(products)
	stale := shop.Order{
		ID:        "INV-1-1",
		ProductID: 1,
		Status:    shop.StatusPending,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := orders.Insert(context.Background(), &stale); err != nil {
		t.Fatal(err)
	}

	m := NewManager(orders, products, &pricing.Engine{Coefficients: coeffs{}},
		&fakeGateway{status: payment.InvoiceActive}, &fakeNotifier{}, zap.NewNop(), nil)
	t.Cleanup(m.Stop)
	if err := m.Resume(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		o, err := orders.Get(context.Background(), stale.ID)
		if err != nil {
			t.Fatal(err)
		}
		if o.Status == shop.StatusExpired {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("overdue order not expired after resume")
}
