package checkout

import (
	"context"
	"errors"
	"net/http"

	"github.com/merchkart/storefront/internal/qikink"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrPaymentNotCaptured: the gateway did not report the payment as
	// captured; nothing was reserved or created.
	ErrPaymentNotCaptured = errors.New("payment not captured")
	// ErrInconsistent: the fulfillment provider accepted the order but the
	// local record failed to commit. Requires manual reconciliation against
	// the qikink order id carried in the wrapping error; never retried here,
	// a retry would create a second provider order.
	ErrInconsistent = errors.New("external order created but local commit failed")
)

// ValidationError marks a malformed placement request; nothing was mutated.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return e.Reason }

// Kind classifies any error crossing the workflow boundary into the stable
// machine-readable tags the API exposes.
func Kind(err error) string {
	var ve *ValidationError
	var fe *qikink.APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation_error"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrPaymentNotCaptured):
		return "payment_not_captured"
	case errors.As(err, &fe):
		return "fulfillment_rejected"
	case errors.Is(err, qikink.ErrUnreachable), errors.Is(err, context.DeadlineExceeded):
		return "fulfillment_unreachable"
	case errors.Is(err, ErrInconsistent):
		return "order_inconsistent"
	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case "validation_error", "insufficient_stock", "payment_not_captured":
		return http.StatusBadRequest
	case "product_not_found":
		return http.StatusNotFound
	case "fulfillment_rejected":
		return http.StatusBadGateway
	case "fulfillment_unreachable":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
