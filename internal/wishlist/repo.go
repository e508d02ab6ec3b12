package wishlist

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkart/storefront/internal/orders"
)

type Repo struct{ DB *pgxpool.Pool }

// Add is idempotent: re-adding a wished product is a no-op.
func (r *Repo) Add(ctx context.Context, userID, productID string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO wishlists(user_id, product_id) VALUES ($1,$2)
		ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID)
	return err
}

func (r *Repo) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM wishlists WHERE user_id=$1 AND product_id=$2`, userID, productID)
	return err
}

func (r *Repo) List(ctx context.Context, userID string) ([]orders.Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.sku, p.name, p.description, COALESCE(p.category_id::text,''),
		       p.price_paise, p.stock, p.image, p.created_at, p.updated_at
		FROM wishlists w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		var p orders.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID,
			&p.PricePaise, &p.Stock, &p.Image, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
