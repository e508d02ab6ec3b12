package checkout

import (
	"context"

	"github.com/merchkart/storefront/internal/orders"
)

// Store is the unit of work for order placement. Everything done through the
// TxOps handed to fn either commits as a whole or leaves no trace: stock
// decrements applied before a failure are rolled back with the transaction.
type Store interface {
	InTx(ctx context.Context, fn func(ops TxOps) error) error
}

// TxOps are the ledger operations available inside one placement transaction.
type TxOps interface {
	// GetProduct reads the product snapshot (name, price, stock, sku).
	// Returns ErrProductNotFound for unknown ids.
	GetProduct(ctx context.Context, productID string) (orders.Product, error)

	// ReserveStock decrements stock by qty as one conditional write:
	// it fails with ErrInsufficientStock when stock < qty, and never lets
	// stock go negative under concurrent placements.
	ReserveStock(ctx context.Context, productID string, qty int) error

	// NextOrderNumber draws from a monotonic sequence and formats the
	// human-readable order id.
	NextOrderNumber(ctx context.Context) (string, error)

	InsertOrder(ctx context.Context, o *orders.Order) error
}
