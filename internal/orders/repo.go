package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// Repo is the order ledger outside of placement: lookups plus the
// identity-scoped mutations applied after an order exists. Placement itself
// (stock reservation + insert in one transaction) lives in internal/checkout.
type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, order_id, customer_id, customer_name, total_paise,
       COALESCE(qikink_order_id,''), COALESCE(razorpay_order_id,''), COALESCE(payment_id,''), COALESCE(awb_no,''),
       status, payment_status, payment_method, order_type,
       addr_full_name, addr_email, addr_phone, addr_door_no, addr_street, addr_city, addr_state, addr_pincode,
       created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderID, &o.CustomerID, &o.CustomerName, &o.TotalPaise,
		&o.QikinkOrderID, &o.RazorpayOrderID, &o.PaymentID, &o.AWBNo,
		&o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.OrderType,
		&o.DeliveryAddress.FullName, &o.DeliveryAddress.Email, &o.DeliveryAddress.Phone,
		&o.DeliveryAddress.DoorNo, &o.DeliveryAddress.Street, &o.DeliveryAddress.City,
		&o.DeliveryAddress.State, &o.DeliveryAddress.Pincode,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func (r *Repo) FindByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderCols+` FROM orders WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	ids := make([]string, 0, 8)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	itemRows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, product_name, qty, price_paise, size, color, sku
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	byOrder := make(map[string][]OrderItem, len(out))
	for itemRows.Next() {
		var oid string
		var it OrderItem
		if err := itemRows.Scan(&oid, &it.ProductID, &it.ProductName, &it.Qty, &it.PricePaise, &it.Size, &it.Color, &it.SKU); err != nil {
			return nil, err
		}
		byOrder[oid] = append(byOrder[oid], it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = byOrder[out[i].ID]
	}
	return out, nil
}

func (r *Repo) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE order_id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, product_name, qty, price_paise, size, color, sku
		FROM order_items WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Qty, &it.PricePaise, &it.Size, &it.Color, &it.SKU); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

// UpdatePaymentRefs records the gateway references delivered by the
// payment-completion webhook. Keyed on the qikink order id and written with
// fixed values, so redelivery of the same notification is a no-op rewrite:
// no duplicate order can appear and state cannot diverge.
func (r *Repo) UpdatePaymentRefs(ctx context.Context, qikinkOrderID, paymentID, razorpayOrderID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET payment_id=$2, razorpay_order_id=$3, payment_status=$4, updated_at=now()
		WHERE qikink_order_id=$1`,
		qikinkOrderID, paymentID, razorpayOrderID, PaymentPaid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTracking backfills the shipment tracking number once the fulfillment
// provider assigns one. Identity-scoped by qikink order id.
func (r *Repo) UpdateTracking(ctx context.Context, qikinkOrderID, awb string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET awb_no=$2, status=$3, updated_at=now()
		WHERE qikink_order_id=$1 AND status NOT IN ($4,$5,$6)`,
		qikinkOrderID, awb, StatusShipped,
		StatusCancelled, StatusDelivered, StatusRefunded)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) ListProducts(ctx context.Context, inStockOnly bool, search string) ([]Product, error) {
	q := `SELECT id, sku, name, description, COALESCE(category_id::text,''), price_paise, stock, image, created_at, updated_at
	      FROM products WHERE 1=1`
	args := []any{}
	if inStockOnly {
		q += ` AND stock > 0`
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		q += ` AND (name ILIKE $1 OR description ILIKE $1 OR sku ILIKE $1)`
	}
	q += ` ORDER BY sku`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.PricePaise, &p.Stock, &p.Image, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, sku, name, description, COALESCE(category_id::text,''), price_paise, stock, image, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.PricePaise, &p.Stock, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
