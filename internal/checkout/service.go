// Package checkout owns the order placement workflow: validate the request,
// reserve stock, create the fulfillment order, persist the local record —
// all inside one unit of work, so a failure at any step before commit leaves
// the ledgers untouched.
package checkout

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/merchkart/storefront/internal/kafka"
	"github.com/merchkart/storefront/internal/orders"
	"github.com/merchkart/storefront/internal/qikink"
	"github.com/merchkart/storefront/internal/razorpay"
)

type FulfillmentClient interface {
	CreateOrder(ctx context.Context, p qikink.OrderPayload) (qikink.OrderResult, error)
}

type PaymentVerifier interface {
	FetchPayment(ctx context.Context, paymentID string) (razorpay.Payment, error)
}

type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store       Store
	Fulfillment FulfillmentClient
	Payments    PaymentVerifier
	Producer    EventPublisher // bound to orders.TopicOrderPlaced; may be nil
	ServiceName string
	// CallTimeout bounds the fulfillment call. On timeout the transaction is
	// rolled back and the error surfaces as fulfillment_unreachable; the
	// workflow never retries, retrying could double-create provider orders.
	CallTimeout time.Duration
}

type ItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

type AddressRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	DoorNo    string `json:"doorNo"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"zipCode"`
}

type PlaceOrderRequest struct {
	Items           []ItemRequest  `json:"orderItems"`
	DeliveryAddress AddressRequest `json:"deliveryAddress"`
	CustomerID      string         `json:"customerId"`
	CustomerName    string         `json:"customerName"`
	OrderType       string         `json:"orderType"`
	BoxPacking      int            `json:"box_packing"`
	GiftWrap        int            `json:"gift_wrap"`
	RushOrder       int            `json:"rush_order"`

	// prepaid only
	PaymentID       string `json:"paymentId"`
	RazorpayOrderID string `json:"razorpayOrderId"`
}

type variant struct {
	gatewayTag    string // sent to qikink: COD | PREPAID
	method        string
	paymentStatus orders.PaymentStatus
}

// PlaceCOD runs the cash-on-delivery placement.
func (s *Service) PlaceCOD(ctx context.Context, req PlaceOrderRequest) (*orders.Order, error) {
	return s.place(ctx, req, variant{
		gatewayTag:    "COD",
		method:        orders.MethodCOD,
		paymentStatus: orders.PaymentCOD,
	})
}

// PlacePrepaid verifies the payment was captured by the gateway, then runs
// the same placement. A payment that is not captured aborts before any stock
// is touched.
func (s *Service) PlacePrepaid(ctx context.Context, req PlaceOrderRequest) (*orders.Order, error) {
	if req.PaymentID == "" {
		return nil, &ValidationError{Reason: "paymentId is required"}
	}
	cctx, cancel := s.boundCtx(ctx)
	defer cancel()
	payment, err := s.Payments.FetchPayment(cctx, req.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}
	if payment.Status != razorpay.StatusCaptured {
		return nil, fmt.Errorf("%w: payment %s is %q", ErrPaymentNotCaptured, req.PaymentID, payment.Status)
	}
	return s.place(ctx, req, variant{
		gatewayTag:    "PREPAID",
		method:        orders.MethodRazorpay,
		paymentStatus: orders.PaymentPaid,
	})
}

func (s *Service) place(ctx context.Context, req PlaceOrderRequest, v variant) (*orders.Order, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	var (
		ord        *orders.Order
		externalID string
	)
	err := s.Store.InTx(ctx, func(ops TxOps) error {
		// Read phase: sequential per item to keep lock footprint small inside
		// the transaction. Nothing is mutated yet.
		lines := make([]orders.OrderItem, 0, len(req.Items))
		total := 0
		for _, it := range req.Items {
			p, err := ops.GetProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			sku, err := orders.VariantSKU(p.SKU, it.Color, it.Size)
			if err != nil {
				return &ValidationError{Reason: err.Error()}
			}
			if p.Stock < it.Quantity {
				return fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientStock, p.Name, p.Stock, it.Quantity)
			}
			lines = append(lines, orders.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Qty:         it.Quantity,
				PricePaise:  p.PricePaise,
				Size:        it.Size,
				Color:       it.Color,
				SKU:         sku,
			})
			total += p.PricePaise * it.Quantity
		}

		// Write phase: all decrements together. Any failed precondition
		// aborts the transaction, so no partial decrement survives.
		for _, ln := range lines {
			if err := ops.ReserveStock(ctx, ln.ProductID, ln.Qty); err != nil {
				return err
			}
		}

		number, err := ops.NextOrderNumber(ctx)
		if err != nil {
			return err
		}

		cctx, cancel := s.boundCtx(ctx)
		defer cancel()
		res, err := s.Fulfillment.CreateOrder(cctx, buildPayload(number, lines, req, total, v.gatewayTag))
		if err != nil {
			return err // rollback reverts every decrement
		}
		externalID = res.OrderID

		now := time.Now().UTC()
		ord = &orders.Order{
			ID:              uuid.NewString(),
			OrderID:         number,
			CustomerID:      req.CustomerID,
			CustomerName:    req.CustomerName,
			Items:           lines,
			DeliveryAddress: snapshotAddress(req.DeliveryAddress),
			TotalPaise:      total,
			QikinkOrderID:   res.OrderID,
			RazorpayOrderID: req.RazorpayOrderID,
			PaymentID:       req.PaymentID,
			AWBNo:           res.AWBNumber,
			Status:          orders.StatusConfirmed,
			PaymentStatus:   v.paymentStatus,
			PaymentMethod:   v.method,
			OrderType:       req.OrderType,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return ops.InsertOrder(ctx, ord)
	})
	if err != nil {
		if externalID != "" {
			// The provider order exists with no local record. Stock was
			// rolled back with the transaction but the provider side cannot
			// be undone from here; hand the id to operators.
			log.Printf("order inconsistency: qikink_order_id=%s customer_id=%s err=%v",
				externalID, req.CustomerID, err)
			return nil, fmt.Errorf("%w: qikink_order_id=%s: %v", ErrInconsistent, externalID, err)
		}
		return nil, err
	}

	s.publishPlaced(ord)
	return ord, nil
}

func (s *Service) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.CallTimeout)
}

func validate(req PlaceOrderRequest) error {
	if len(req.Items) == 0 {
		return &ValidationError{Reason: "orderItems must be a non-empty array"}
	}
	for i, it := range req.Items {
		switch {
		case it.ProductID == "":
			return &ValidationError{Reason: fmt.Sprintf("orderItems[%d]: product_id is required", i)}
		case it.Quantity < 1:
			return &ValidationError{Reason: fmt.Sprintf("orderItems[%d]: quantity must be >= 1", i)}
		case it.Color == "" || it.Size == "":
			return &ValidationError{Reason: fmt.Sprintf("orderItems[%d]: color and size are required", i)}
		}
	}
	if req.CustomerID == "" || req.CustomerName == "" {
		return &ValidationError{Reason: "customerId and customerName are required"}
	}
	a := req.DeliveryAddress
	if a.FirstName == "" || a.Phone == "" || a.DoorNo == "" || a.Address == "" ||
		a.City == "" || a.State == "" || a.Pincode == "" {
		return &ValidationError{Reason: "deliveryAddress is incomplete"}
	}
	return nil
}

func snapshotAddress(a AddressRequest) orders.DeliveryAddress {
	return orders.DeliveryAddress{
		FullName: strings.TrimSpace(a.FirstName + " " + a.LastName),
		Email:    a.Email,
		Phone:    a.Phone,
		DoorNo:   a.DoorNo,
		Street:   a.Address,
		City:     a.City,
		State:    a.State,
		Pincode:  a.Pincode,
	}
}

func buildPayload(orderNumber string, lines []orders.OrderItem, req PlaceOrderRequest, totalPaise int, gatewayTag string) qikink.OrderPayload {
	items := make([]qikink.LineItem, 0, len(lines))
	for _, ln := range lines {
		items = append(items, qikink.LineItem{
			SearchFromMyProducts: 1,
			Quantity:             fmt.Sprintf("%d", ln.Qty),
			Price:                rupees(ln.PricePaise),
			SKU:                  ln.SKU,
		})
	}
	a := req.DeliveryAddress
	return qikink.OrderPayload{
		OrderNumber:     orderNumber,
		QikinkShipping:  "1",
		Gateway:         gatewayTag,
		TotalOrderValue: rupees(totalPaise),
		LineItems:       items,
		AddOns: []qikink.AddOns{{
			BoxPacking: req.BoxPacking,
			GiftWrap:   req.GiftWrap,
			RushOrder:  req.RushOrder,
		}},
		ShippingAddress: qikink.ShippingAddress{
			FirstName:   a.FirstName,
			LastName:    a.LastName,
			Address1:    strings.TrimSpace(a.DoorNo + " " + a.Address),
			Phone:       a.Phone,
			Email:       a.Email,
			City:        a.City,
			Zip:         a.Pincode,
			Province:    a.State,
			CountryCode: "IN",
		},
	}
}

func rupees(paise int) string {
	return fmt.Sprintf("%d.%02d", paise/100, paise%100)
}

func (s *Service) publishPlaced(ord *orders.Order) {
	if s.Producer == nil {
		return
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: ord.ID,
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID:       ord.OrderID,
			QikinkOrderID: ord.QikinkOrderID,
			CustomerID:    ord.CustomerID,
			PaymentMethod: ord.PaymentMethod,
			TotalPaise:    ord.TotalPaise,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(ord.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
