package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/merchkart/storefront/internal/qikink"
)

func TestKindAndHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   string
		wantStatus int
	}{
		{"nil", nil, "", http.StatusOK},
		{"validation", &ValidationError{Reason: "bad"}, "validation_error", http.StatusBadRequest},
		{"product not found", fmt.Errorf("%w: p9", ErrProductNotFound), "product_not_found", http.StatusNotFound},
		{"insufficient stock", fmt.Errorf("%w: tee", ErrInsufficientStock), "insufficient_stock", http.StatusBadRequest},
		{"payment not captured", fmt.Errorf("%w: pay_1", ErrPaymentNotCaptured), "payment_not_captured", http.StatusBadRequest},
		{"rejected", &qikink.APIError{StatusCode: 422, Message: "nope"}, "fulfillment_rejected", http.StatusBadGateway},
		{"wrapped rejected", fmt.Errorf("create: %w", &qikink.APIError{StatusCode: 400}), "fulfillment_rejected", http.StatusBadGateway},
		{"unreachable", fmt.Errorf("%w: dial", qikink.ErrUnreachable), "fulfillment_unreachable", http.StatusGatewayTimeout},
		{"deadline", context.DeadlineExceeded, "fulfillment_unreachable", http.StatusGatewayTimeout},
		{"inconsistent", fmt.Errorf("%w: qikink_order_id=9", ErrInconsistent), "order_inconsistent", http.StatusInternalServerError},
		{"unknown", errors.New("boom"), "internal", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, Kind(tt.err))
			assert.Equal(t, tt.wantStatus, HTTPStatus(tt.err))
		})
	}
}
