package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/merchkart/storefront/internal/auth"
	"github.com/merchkart/storefront/internal/checkout"
	kafkax "github.com/merchkart/storefront/internal/kafka"
	"github.com/merchkart/storefront/internal/orders"
	"github.com/merchkart/storefront/internal/qikink"
	"github.com/merchkart/storefront/internal/razorpay"
	"github.com/merchkart/storefront/internal/redisx"
)

type CheckoutService interface {
	PlaceCOD(ctx context.Context, req checkout.PlaceOrderRequest) (*orders.Order, error)
	PlacePrepaid(ctx context.Context, req checkout.PlaceOrderRequest) (*orders.Order, error)
}

type OrderLedger interface {
	FindByCustomer(ctx context.Context, customerID string) ([]orders.Order, error)
	UpdatePaymentRefs(ctx context.Context, qikinkOrderID, paymentID, razorpayOrderID string) error
}

type TrackingClient interface {
	GetOrder(ctx context.Context, qikinkOrderID string) (qikink.OrderStatus, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountPaise int, receipt string) (razorpay.GatewayOrder, error)
}

type OrdersHandler struct {
	Checkout CheckoutService
	Orders   OrderLedger
	Qikink   TrackingClient
	Razorpay PaymentGateway
	Redis    *redis.Client           // tracking cache; may be nil
	Producer checkout.EventPublisher // payment.completed events; may be nil
	Service  string
}

// Register mounts the authenticated order routes.
func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders/cod", h.createCODOrder)
	r.Post("/razorpay/initiate-payment", h.initiatePayment)
	r.Post("/razorpay/process-order", h.processPrepaidOrder)
	r.Get("/orders/{customerId}", h.ordersByCustomer)
	r.Get("/track-order/{qikinkOrderId}", h.trackOrder)
}

// RegisterWebhooks mounts the inbound webhook routes (no bearer auth).
func (h *OrdersHandler) RegisterWebhooks(r chi.Router) {
	r.Post("/qikink/payment-complete", h.paymentComplete)
}

type placeOrderResp struct {
	Success       bool   `json:"success"`
	OrderID       string `json:"orderId"`
	QikinkOrderID string `json:"qikinkOrderId"`
	TotalPaise    int    `json:"totalPaise"`
	Message       string `json:"message"`
}

func (h *OrdersHandler) createCODOrder(w http.ResponseWriter, r *http.Request) {
	h.placeOrder(w, r, h.Checkout.PlaceCOD)
}

func (h *OrdersHandler) processPrepaidOrder(w http.ResponseWriter, r *http.Request) {
	h.placeOrder(w, r, h.Checkout.PlacePrepaid)
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request,
	place func(context.Context, checkout.PlaceOrderRequest) (*orders.Order, error)) {

	var req checkout.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeWorkflowErr(w, &checkout.ValidationError{Reason: "invalid json"})
		return
	}
	if req.CustomerID == "" {
		req.CustomerID = auth.UserID(r.Context())
	}

	ctx, cancel := context.WithTimeout(r.Context(), 25*time.Second)
	defer cancel()

	ord, err := place(ctx, req)
	if err != nil {
		writeWorkflowErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, placeOrderResp{
		Success:       true,
		OrderID:       ord.OrderID,
		QikinkOrderID: ord.QikinkOrderID,
		TotalPaise:    ord.TotalPaise,
		Message:       "Order created successfully",
	})
}

func (h *OrdersHandler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AmountPaise int `json:"amount_paise"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AmountPaise <= 0 {
		writeFail(w, http.StatusBadRequest, "amount_paise must be a positive integer")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	receipt := "receipt_order_" + uuid.NewString()[:8]
	gw, err := h.Razorpay.CreateOrder(ctx, req.AmountPaise, receipt)
	if err != nil {
		writeFail(w, http.StatusBadGateway, "failed to initialize payment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"razorpayOrderId": gw.ID,
		"message":         "Payment initialized successfully",
	})
}

func (h *OrdersHandler) ordersByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")
	if customerID == "" {
		writeFail(w, http.StatusBadRequest, "missing customerId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Orders.FindByCustomer(ctx, customerID)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "failed to get orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Orders fetched successfully",
		"orders":  list,
	})
}

// trackOrder is a read-through: cached tracking info when fresh, otherwise a
// live provider query. A missing shipping block is a soft failure, not an
// error, per the provider's semantics.
func (h *OrdersHandler) trackOrder(w http.ResponseWriter, r *http.Request) {
	qikinkOrderID := chi.URLParam(r, "qikinkOrderId")
	if qikinkOrderID == "" {
		writeFail(w, http.StatusBadRequest, "missing qikinkOrderId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyTrackOrder, qikinkOrderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	st, err := h.Qikink.GetOrder(ctx, qikinkOrderID)
	if errors.Is(err, qikink.ErrOrderNotFound) {
		writeFail(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		writeFail(w, http.StatusBadGateway, "failed to fetch tracking info")
		return
	}
	if st.TrackingLink == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "Tracking link or AWB not available",
		})
		return
	}

	body := map[string]any{"success": true, "trackingLink": st.TrackingLink, "status": st.Status}
	if h.Redis != nil {
		b, _ := json.Marshal(body)
		_ = h.Redis.Set(ctx, key, b, redisx.TTLTrackCache).Err()
	}
	writeJSON(w, http.StatusOK, body)
}

type paymentCompleteReq struct {
	QikinkOrderID   string `json:"qikinkOrderId"`
	PaymentID       string `json:"paymentId"`
	RazorpayOrderID string `json:"razorpayOrderId"`
}

// paymentComplete applies gateway references to an already-placed order.
// Redelivery is harmless: the update writes fixed values keyed on the qikink
// order id, so processing the same notification twice ends in the same state.
func (h *OrdersHandler) paymentComplete(w http.ResponseWriter, r *http.Request) {
	var req paymentCompleteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.QikinkOrderID == "" || req.PaymentID == "" {
		writeFail(w, http.StatusBadRequest, "qikinkOrderId and paymentId are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.Orders.UpdatePaymentRefs(ctx, req.QikinkOrderID, req.PaymentID, req.RazorpayOrderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeFail(w, http.StatusNotFound, "no order matches this qikinkOrderId")
		return
	}
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "failed to record payment")
		return
	}

	if h.Producer != nil {
		env := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventPaymentCompleted,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      h.Service,
			TraceID:       r.Header.Get("X-Request-Id"),
			CorrelationID: req.QikinkOrderID,
			Payload: kafkax.MustMarshal(orders.PaymentCompletedPayload{
				QikinkOrderID:   req.QikinkOrderID,
				PaymentID:       req.PaymentID,
				RazorpayOrderID: req.RazorpayOrderID,
			}),
		}
		h.Producer.Publish(orders.PartitionKey(req.QikinkOrderID), kafkax.MustMarshal(env),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventPaymentCompleted)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Payment recorded"})
}
