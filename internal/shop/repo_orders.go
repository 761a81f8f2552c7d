package shop

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettleOutcome reports which side of the settlement race this call took.
type SettleOutcome int

const (
	// SettleWon: the order moved PENDING -> PAID and, for fixed products,
	// one unit of stock was taken.
	SettleWon SettleOutcome = iota
	// SettleSoldOut: payment confirmed but the last unit was gone; the order
	// moved PENDING -> OUT_OF_STOCK and is left for manual reconciliation.
	SettleSoldOut
	// SettleLost: the order was no longer PENDING; nothing was written.
	SettleLost
)

type OrderRepo struct{ DB *pgxpool.Pool }

const orderColumns = `order_id, customer_id, username, first_name, product_id, product_name, product_kind,
	custom_amount, price_amount, price_with_fee, provider_invoice_id, status, created_at, paid_at`

func (r *OrderRepo) Insert(ctx context.Context, o *Order) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.CustomerID, o.Username, o.FirstName, o.ProductID, o.ProductName, o.ProductKind,
		o.CustomAmount, o.PriceAmount, o.PriceWithFee, o.ProviderInvoiceID, o.Status, o.CreatedAt, o.PaidAt)
	return err
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (*Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListPending returns every order still awaiting resolution, used to
// reschedule expiry timers after a restart.
func (r *OrderRepo) ListPending(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1`, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Expire moves the order to EXPIRED only if it is still PENDING. Returns
// false when the order already reached a terminal state.
func (r *OrderRepo) Expire(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = $2 WHERE order_id = $1 AND status = $3`,
		orderID, StatusExpired, StatusPending)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// Settle atomically claims the order (PENDING -> PAID) and, for fixed
// products, takes one unit of stock. Both writes are conditional and share a
// transaction, so concurrent checks on the same order and concurrent
// settlements against the same last unit each get exactly one winner.
func (r *OrderRepo) Settle(ctx context.Context, orderID string, productID int64, fixed bool, paidAt time.Time) (SettleOutcome, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return SettleLost, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, paid_at = $3 WHERE order_id = $1 AND status = $4`,
		orderID, StatusPaid, paidAt, StatusPending)
	if err != nil {
		return SettleLost, err
	}
	if ct.RowsAffected() == 0 {
		return SettleLost, nil
	}

	outcome := SettleWon
	if fixed {
		ct, err = tx.Exec(ctx, `
			UPDATE products SET stock = stock - 1 WHERE id = $1 AND stock > 0`, productID)
		if err != nil {
			return SettleLost, err
		}
		if ct.RowsAffected() == 0 {
			// Paid but unfulfillable; record it for manual resolution.
			if _, err := tx.Exec(ctx, `
				UPDATE orders SET status = $2, paid_at = NULL WHERE order_id = $1`,
				orderID, StatusOutOfStock); err != nil {
				return SettleLost, err
			}
			outcome = SettleSoldOut
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return SettleLost, err
	}
	return outcome, nil
}

func (r *OrderRepo) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.DB.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products WHERE is_active),
			(SELECT COALESCE(SUM(stock), 0) FROM products WHERE is_active),
			(SELECT COUNT(*) FROM orders WHERE status = $1),
			(SELECT COALESCE(SUM(price_amount), 0) FROM orders WHERE status = $1),
			(SELECT COALESCE(SUM(price_with_fee), 0) FROM orders WHERE status = $1),
			(SELECT COUNT(*) FROM users)`, StatusPaid).
		Scan(&s.ActiveProducts, &s.TotalStock, &s.PaidOrders, &s.Revenue, &s.RevenueWithFee, &s.TotalUsers)
	return s, err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.Username, &o.FirstName, &o.ProductID, &o.ProductName, &o.ProductKind,
		&o.CustomAmount, &o.PriceAmount, &o.PriceWithFee, &o.ProviderInvoiceID, &o.Status, &o.CreatedAt, &o.PaidAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
