package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Product catalog reads. The ordering core only consumes these as read models;
// catalog writes live outside this service.

func (r *Repo) ListProducts(ctx context.Context, categoryID *int64) ([]Product, error) {
	q := `SELECT id, name, description, price, image_url, category_id, created_at
	      FROM products`
	args := []any{}
	if categoryID != nil {
		q += ` WHERE category_id=$1`
		args = append(args, *categoryID)
	}
	q += ` ORDER BY id`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.CategoryID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, description, price, image_url, category_id, created_at
		FROM products WHERE id=$1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.CategoryID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
