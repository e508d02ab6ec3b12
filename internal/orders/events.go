package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced      = "OrderPlaced"
	EventPaymentCompleted = "PaymentCompleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`   // uuid
	EventType     string          `json:"event_type"` // one of the consts above
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "storefront-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID       string `json:"order_id"`
	QikinkOrderID string `json:"qikink_order_id"`
	CustomerID    string `json:"customer_id"`
	PaymentMethod string `json:"payment_method"`
	TotalPaise    int    `json:"total_paise"`
}

type PaymentCompletedPayload struct {
	QikinkOrderID   string `json:"qikink_order_id"`
	PaymentID       string `json:"payment_id"`
	RazorpayOrderID string `json:"razorpay_order_id"`
}
