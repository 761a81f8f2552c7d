package shop

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CoefficientRepo stores the admin-tunable pricing scalars. Reads fall back
// to defaults when a row is absent; stale reads are fine for pricing.
type CoefficientRepo struct{ DB *pgxpool.Pool }

func (r *CoefficientRepo) Get(ctx context.Context, t CoefficientType) (float64, error) {
	var v float64
	err := r.DB.QueryRow(ctx, `SELECT value FROM coefficients WHERE coefficient_type = $1`, t).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		if def, ok := DefaultCoefficients[t]; ok {
			return def, nil
		}
		return 1.0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (r *CoefficientRepo) Set(ctx context.Context, t CoefficientType, value float64) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO coefficients (coefficient_type, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (coefficient_type) DO UPDATE SET value = $2, updated_at = $3`,
		t, value, time.Now().UTC())
	return err
}

func (r *CoefficientRepo) All(ctx context.Context) ([]Coefficient, error) {
	rows, err := r.DB.Query(ctx, `SELECT coefficient_type, value, updated_at FROM coefficients ORDER BY coefficient_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[CoefficientType]bool{}
	var out []Coefficient
	for rows.Next() {
		var c Coefficient
		if err := rows.Scan(&c.Type, &c.Value, &c.UpdatedAt); err != nil {
			return nil, err
		}
		seen[c.Type] = true
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for t, def := range DefaultCoefficients {
		if !seen[t] {
			out = append(out, Coefficient{Type: t, Value: def})
		}
	}
	return out, nil
}
