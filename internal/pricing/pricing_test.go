package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/avdeenkov/cryptoshop/internal/shop"
)

type staticCoefficients map[shop.CoefficientType]float64

func (c staticCoefficients) Get(_ context.Context, t shop.CoefficientType) (float64, error) {
	if v, ok := c[t]; ok {
		return v, nil
	}
	return shop.DefaultCoefficients[t], nil
}

func ptr(v float64) *float64 { return &v }

func TestQuoteStars(t *testing.T) {
	e := &Engine{Coefficients: staticCoefficients{
		shop.CoeffStars:        1.35,
		shop.CoeffExchangeRate: 77.5,
	}}

	q, err := e.Quote(context.Background(), shop.Product{Kind: shop.KindStars}, ptr(100))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Base != 1.74 {
		t.Errorf("base = %v, want 1.74", q.Base)
	}
	if q.WithFee != 1.79 {
		t.Errorf("with fee = %v, want 1.79", q.WithFee)
	}
}

func TestQuoteSteam(t *testing.T) {
	e := &Engine{Coefficients: staticCoefficients{
		shop.CoeffSteam:        1.03,
		shop.CoeffExchangeRate: 77.5,
	}}

	q, err := e.Quote(context.Background(), shop.Product{Kind: shop.KindSteam}, ptr(500))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Base != 6.65 {
		t.Errorf("base = %v, want 6.65", q.Base)
	}
	if q.WithFee != 6.85 {
		t.Errorf("with fee = %v, want 6.85", q.WithFee)
	}
}

func TestQuoteFixed(t *testing.T) {
	e := &Engine{Coefficients: staticCoefficients{}}

	q, err := e.Quote(context.Background(), shop.Product{Kind: shop.KindFixed, Price: 2.5, Stock: 3}, nil)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Base != 2.5 {
		t.Errorf("base = %v, want 2.5", q.Base)
	}
	if q.WithFee != 2.58 {
		t.Errorf("with fee = %v, want 2.58", q.WithFee)
	}
}

func TestQuoteFixedOutOfStock(t *testing.T) {
	e := &Engine{Coefficients: staticCoefficients{}}

	_, err := e.Quote(context.Background(), shop.Product{Kind: shop.KindFixed, Price: 2.5, Stock: 0}, nil)
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("err = %v, want ErrOutOfStock", err)
	}
}

func TestQuoteBelowMinimum(t *testing.T) {
	e := &Engine{Coefficients: staticCoefficients{}}

	cases := []struct {
		kind   shop.Kind
		amount float64
	}{
		{shop.KindStars, 49},
		{shop.KindSteam, 99.99},
	}
	for _, c := range cases {
		if _, err := e.Quote(context.Background(), shop.Product{Kind: c.kind}, ptr(c.amount)); !errors.Is(err, ErrBelowMinimum) {
			t.Errorf("%s amount=%v: err = %v, want ErrBelowMinimum", c.kind, c.amount, err)
		}
	}

	// Exactly at the minimum is accepted.
	if _, err := e.Quote(context.Background(), shop.Product{Kind: shop.KindStars}, ptr(50)); err != nil {
		t.Errorf("stars amount=50: %v", err)
	}
}

func TestQuoteVariableWithoutAmount(t *testing.T) {
	e := &Engine{Coefficients: staticCoefficients{}}
	if _, err := e.Quote(context.Background(), shop.Product{Kind: shop.KindStars}, nil); !errors.Is(err, ErrAmountNeeded) {
		t.Fatalf("err = %v, want ErrAmountNeeded", err)
	}
}
