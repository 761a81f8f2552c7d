package shop

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type ProductRepo struct{ DB *pgxpool.Pool }

func (r *ProductRepo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, description FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ProductRepo) CreateCategory(ctx context.Context, c Category) (int64, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO categories (name, description)
		VALUES ($1, $2)
		RETURNING id`, c.Name, c.Description).Scan(&id)
	return id, err
}

// ListProducts returns the active products of a category, the set a customer
// may browse and buy from.
func (r *ProductRepo) ListProducts(ctx context.Context, categoryID int64) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, category_id, name, price, description, stock, kind, is_active
		FROM products
		WHERE category_id = $1 AND is_active
		ORDER BY id`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (r *ProductRepo) ListAll(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, category_id, name, price, description, stock, kind, is_active
		FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Price, &p.Description, &p.Stock, &p.Kind, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetActive loads a product available for purchase.
func (r *ProductRepo) GetActive(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, category_id, name, price, description, stock, kind, is_active
		FROM products WHERE id = $1 AND is_active`, id).
		Scan(&p.ID, &p.CategoryID, &p.Name, &p.Price, &p.Description, &p.Stock, &p.Kind, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *ProductRepo) Stock(ctx context.Context, id int64) (int, error) {
	var stock int
	err := r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return stock, err
}

func (r *ProductRepo) Create(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products (category_id, name, price, description, stock, kind, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id`,
		p.CategoryID, p.Name, p.Price, p.Description, p.Stock, p.Kind).Scan(&id)
	return id, err
}

func (r *ProductRepo) Update(ctx context.Context, p Product) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products
		SET category_id = $2, name = $3, price = $4, description = $5, stock = $6, kind = $7, is_active = $8
		WHERE id = $1`,
		p.ID, p.CategoryID, p.Name, p.Price, p.Description, p.Stock, p.Kind, p.Active)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
