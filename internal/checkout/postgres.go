package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkart/storefront/internal/orders"
)

// PostgresStore runs placement units of work on a pgx pool.
type PostgresStore struct{ DB *pgxpool.Pool }

func (s *PostgresStore) InTx(ctx context.Context, fn func(ops TxOps) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTxOps{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTxOps struct{ tx pgx.Tx }

func (o *pgTxOps) GetProduct(ctx context.Context, productID string) (orders.Product, error) {
	var p orders.Product
	err := o.tx.QueryRow(ctx,
		`SELECT id, sku, name, price_paise, stock FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.SKU, &p.Name, &p.PricePaise, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return orders.Product{}, err
	}
	return p, nil
}

// ReserveStock is the single conditional write the whole design leans on:
// compare-and-decrement in one statement, so two concurrent orders for the
// last unit cannot both pass. No prior read-then-write, no advisory locks.
func (o *pgTxOps) ReserveStock(ctx context.Context, productID string, qty int) error {
	ct, err := o.tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now()
		 WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: product %s qty %d", ErrInsufficientStock, productID, qty)
	}
	return nil
}

func (o *pgTxOps) NextOrderNumber(ctx context.Context) (string, error) {
	var n int64
	if err := o.tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD%04d", n), nil
}

func (o *pgTxOps) InsertOrder(ctx context.Context, ord *orders.Order) error {
	_, err := o.tx.Exec(ctx, `
		INSERT INTO orders(
			id, order_id, customer_id, customer_name, total_paise,
			qikink_order_id, razorpay_order_id, payment_id, awb_no,
			status, payment_status, payment_method, order_type,
			addr_full_name, addr_email, addr_phone, addr_door_no,
			addr_street, addr_city, addr_state, addr_pincode)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),NULLIF($8,''),NULLIF($9,''),
			$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		ord.ID, ord.OrderID, ord.CustomerID, ord.CustomerName, ord.TotalPaise,
		ord.QikinkOrderID, ord.RazorpayOrderID, ord.PaymentID, ord.AWBNo,
		ord.Status, ord.PaymentStatus, ord.PaymentMethod, ord.OrderType,
		ord.DeliveryAddress.FullName, ord.DeliveryAddress.Email, ord.DeliveryAddress.Phone,
		ord.DeliveryAddress.DoorNo, ord.DeliveryAddress.Street, ord.DeliveryAddress.City,
		ord.DeliveryAddress.State, ord.DeliveryAddress.Pincode)
	if err != nil {
		return err
	}

	for _, it := range ord.Items {
		if _, err := o.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, product_name, qty, price_paise, size, color, sku)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			ord.ID, it.ProductID, it.ProductName, it.Qty, it.PricePaise, it.Size, it.Color, it.SKU); err != nil {
			return err
		}
	}
	return nil
}
