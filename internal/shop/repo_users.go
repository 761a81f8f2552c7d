package shop

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct{ DB *pgxpool.Pool }

// Save upserts a customer record and bumps last_activity.
func (r *UserRepo) Save(ctx context.Context, customerID int64, username, firstName string) error {
	now := time.Now().UTC()
	_, err := r.DB.Exec(ctx, `
		INSERT INTO users (customer_id, username, first_name, joined_at, last_activity)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (customer_id)
		DO UPDATE SET username = $2, first_name = $3, last_activity = $4`,
		customerID, username, firstName, now)
	return err
}

func (r *UserRepo) ListCustomerIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.DB.Query(ctx, `SELECT customer_id FROM users ORDER BY customer_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *UserRepo) IsBanned(ctx context.Context, customerID int64) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM banned_users WHERE customer_id = $1`, customerID).Scan(&n)
	return n > 0, err
}

func (r *UserRepo) Ban(ctx context.Context, b Ban) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO banned_users (customer_id, username, banned_by, banned_at, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (customer_id) DO NOTHING`,
		b.CustomerID, b.Username, b.BannedBy, b.BannedAt, b.Reason)
	return err
}

func (r *UserRepo) Unban(ctx context.Context, customerID int64) (bool, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM banned_users WHERE customer_id = $1`, customerID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *UserRepo) ListBans(ctx context.Context) ([]Ban, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT customer_id, username, banned_by, banned_at, reason
		FROM banned_users ORDER BY banned_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ban
	for rows.Next() {
		var b Ban
		if err := rows.Scan(&b.CustomerID, &b.Username, &b.BannedBy, &b.BannedAt, &b.Reason); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
