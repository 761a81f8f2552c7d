// Package pricing turns a product and an optional variable amount into the
// quoted invoice amounts. It is pure apart from reading coefficients, and its
// rounding must match the provider-visible invoice amounts exactly: half-up
// to 2 decimals at each derived quantity, base first, then fee.
package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/avdeenkov/cryptoshop/internal/shop"
)

const (
	// ProviderFee is the fixed 3% the payment provider adds on top.
	ProviderFee = 0.03

	MinStarsAmount = 50
	MinSteamAmount = 100
)

var (
	ErrBelowMinimum = errors.New("amount below minimum")
	ErrOutOfStock   = errors.New("product out of stock")
	ErrAmountNeeded = errors.New("variable amount required")
)

// CoefficientReader is the read-only view of the coefficient store the
// engine needs. Staleness is acceptable.
type CoefficientReader interface {
	Get(ctx context.Context, t shop.CoefficientType) (float64, error)
}

type Quote struct {
	Base    float64
	WithFee float64
}

type Engine struct {
	Coefficients CoefficientReader
}

func (e *Engine) Quote(ctx context.Context, p shop.Product, variableAmount *float64) (Quote, error) {
	switch p.Kind {
	case shop.KindFixed:
		if p.Stock <= 0 {
			return Quote{}, ErrOutOfStock
		}
		return quoteFromBase(round2(decimal.NewFromFloat(p.Price))), nil

	case shop.KindStars:
		if variableAmount == nil {
			return Quote{}, ErrAmountNeeded
		}
		if *variableAmount < MinStarsAmount {
			return Quote{}, ErrBelowMinimum
		}
		return e.variableQuote(ctx, *variableAmount, shop.CoeffStars)

	case shop.KindSteam:
		if variableAmount == nil {
			return Quote{}, ErrAmountNeeded
		}
		if *variableAmount < MinSteamAmount {
			return Quote{}, ErrBelowMinimum
		}
		return e.variableQuote(ctx, *variableAmount, shop.CoeffSteam)
	}
	return Quote{}, errors.New("unknown product kind")
}

// variableQuote computes round2(amount × coefficient ÷ exchange rate).
func (e *Engine) variableQuote(ctx context.Context, amount float64, t shop.CoefficientType) (Quote, error) {
	coeff, err := e.Coefficients.Get(ctx, t)
	if err != nil {
		return Quote{}, err
	}
	rate, err := e.Coefficients.Get(ctx, shop.CoeffExchangeRate)
	if err != nil {
		return Quote{}, err
	}

	base := round2(decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(coeff)).
		Div(decimal.NewFromFloat(rate)))
	return quoteFromBase(base), nil
}

func quoteFromBase(base decimal.Decimal) Quote {
	return Quote{
		Base:    base.InexactFloat64(),
		WithFee: withFee(base).InexactFloat64(),
	}
}

// AddFee returns the fee-inclusive amount for an already rounded base.
func AddFee(base float64) float64 {
	return withFee(decimal.NewFromFloat(base)).InexactFloat64()
}

func withFee(base decimal.Decimal) decimal.Decimal {
	return round2(base.Mul(decimal.NewFromFloat(1 + ProviderFee)))
}

// round2 rounds half-up to 2 decimals (Round is half away from zero, which
// is the same thing for the non-negative money amounts handled here).
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
