package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/merchkart/storefront/internal/orders"
	"github.com/merchkart/storefront/internal/qikink"
	"github.com/merchkart/storefront/internal/razorpay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memStore is an in-memory Store: fn runs against a staged copy of the
// product table and the copy only replaces the real one on commit, so a
// failing fn leaves stock exactly as it was.
type memStore struct {
	mu        sync.Mutex
	products  map[string]orders.Product
	orders    []*orders.Order
	seq       int
	insertErr error // injected InsertOrder failure
	commitErr error // injected commit failure
}

func newMemStore(ps ...orders.Product) *memStore {
	m := &memStore{products: make(map[string]orders.Product)}
	for _, p := range ps {
		m.products[p.ID] = p
	}
	return m
}

func (s *memStore) InTx(ctx context.Context, fn func(ops TxOps) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]orders.Product, len(s.products))
	for k, v := range s.products {
		staged[k] = v
	}
	ops := &memTxOps{store: s, staged: staged}
	if err := fn(ops); err != nil {
		return err
	}
	if s.commitErr != nil {
		return s.commitErr
	}
	s.products = staged
	s.orders = append(s.orders, ops.inserted...)
	return nil
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) placed() []*orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*orders.Order(nil), s.orders...)
}

type memTxOps struct {
	store    *memStore
	staged   map[string]orders.Product
	inserted []*orders.Order
}

func (o *memTxOps) GetProduct(_ context.Context, id string) (orders.Product, error) {
	p, ok := o.staged[id]
	if !ok {
		return orders.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return p, nil
}

func (o *memTxOps) ReserveStock(_ context.Context, id string, qty int) error {
	p, ok := o.staged[id]
	if !ok || p.Stock < qty {
		return fmt.Errorf("%w: product %s", ErrInsufficientStock, id)
	}
	p.Stock -= qty
	o.staged[id] = p
	return nil
}

func (o *memTxOps) NextOrderNumber(_ context.Context) (string, error) {
	// like a database sequence, numbers are burned even on rollback
	o.store.seq++
	return fmt.Sprintf("ORD%04d", o.store.seq), nil
}

func (o *memTxOps) InsertOrder(_ context.Context, ord *orders.Order) error {
	if o.store.insertErr != nil {
		return o.store.insertErr
	}
	o.inserted = append(o.inserted, ord)
	return nil
}

type stubFulfillment struct {
	mu    sync.Mutex
	res   qikink.OrderResult
	err   error
	calls int
	last  qikink.OrderPayload
}

func (f *stubFulfillment) CreateOrder(_ context.Context, p qikink.OrderPayload) (qikink.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = p
	if f.err != nil {
		return qikink.OrderResult{}, f.err
	}
	return f.res, nil
}

type stubPayments struct {
	payment razorpay.Payment
	err     error
}

func (p *stubPayments) FetchPayment(context.Context, string) (razorpay.Payment, error) {
	return p.payment, p.err
}

type memProducer struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (p *memProducer) Publish(_, value []byte, _ ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, value)
}

func (p *memProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func tee(stock int) orders.Product {
	return orders.Product{
		ID:         "p1",
		SKU:        "MRnHs-Pu-S-Floral_A_1-Bk-dtf",
		Name:       "Round Neck Tee",
		PricePaise: 49900,
		Stock:      stock,
	}
}

func validRequest() PlaceOrderRequest {
	return PlaceOrderRequest{
		Items: []ItemRequest{{ProductID: "p1", Quantity: 2, Color: "Wh", Size: "XL"}},
		DeliveryAddress: AddressRequest{
			FirstName: "Asha", LastName: "Nair",
			Email: "asha@example.com", Phone: "9876543210",
			DoorNo: "12B", Address: "MG Road", City: "Kochi",
			State: "Kerala", Pincode: "682001",
		},
		CustomerID:   "u1",
		CustomerName: "Asha Nair",
		OrderType:    orders.TypeBuyNow,
	}
}

func newService(store *memStore, f *stubFulfillment, pay *stubPayments, prod *memProducer) *Service {
	var pub EventPublisher
	if prod != nil {
		pub = prod
	}
	return &Service{
		Store:       store,
		Fulfillment: f,
		Payments:    pay,
		Producer:    pub,
		ServiceName: "storefront-api",
	}
}

func TestPlaceCOD_Success(t *testing.T) {
	store := newMemStore(tee(5))
	f := &stubFulfillment{res: qikink.OrderResult{OrderID: "987654"}}
	prod := &memProducer{}
	svc := newService(store, f, nil, prod)

	ord, err := svc.PlaceCOD(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, 3, store.stock("p1"), "stock decremented by quantity")
	assert.Equal(t, "ORD0001", ord.OrderID)
	assert.Equal(t, "987654", ord.QikinkOrderID)
	assert.Equal(t, orders.StatusConfirmed, ord.Status)
	assert.Equal(t, orders.PaymentCOD, ord.PaymentStatus)
	assert.Equal(t, orders.MethodCOD, ord.PaymentMethod)
	assert.Equal(t, 2*49900, ord.TotalPaise)
	require.Len(t, ord.Items, 1)
	assert.Equal(t, "MRnHs-Wh-XL-Floral_A_1-Bk-dtf", ord.Items[0].SKU)
	assert.Equal(t, 49900, ord.Items[0].PricePaise, "price snapshotted from catalog")

	require.Len(t, store.placed(), 1)
	assert.Equal(t, 1, prod.count(), "one placed event published")

	// payload sent to the provider
	assert.Equal(t, "COD", f.last.Gateway)
	assert.Equal(t, "998.00", f.last.TotalOrderValue)
	require.Len(t, f.last.LineItems, 1)
	assert.Equal(t, "499.00", f.last.LineItems[0].Price)
	assert.Equal(t, "2", f.last.LineItems[0].Quantity)
	assert.Equal(t, "IN", f.last.ShippingAddress.CountryCode)
}

func TestPlaceCOD_InsufficientStock(t *testing.T) {
	store := newMemStore(tee(1))
	f := &stubFulfillment{res: qikink.OrderResult{OrderID: "987654"}}
	svc := newService(store, f, nil, nil)

	_, err := svc.PlaceCOD(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 1, store.stock("p1"), "stock untouched")
	assert.Empty(t, store.placed())
	assert.Equal(t, 0, f.calls, "provider never called")
}

func TestPlaceCOD_UnknownProduct(t *testing.T) {
	store := newMemStore()
	svc := newService(store, &stubFulfillment{}, nil, nil)

	_, err := svc.PlaceCOD(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, "product_not_found", Kind(err))
}

func TestPlaceCOD_FulfillmentRejected_RevertsStock(t *testing.T) {
	store := newMemStore(tee(5))
	f := &stubFulfillment{err: &qikink.APIError{StatusCode: 422, Message: "sku not found"}}
	svc := newService(store, f, nil, nil)

	_, err := svc.PlaceCOD(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, "fulfillment_rejected", Kind(err))

	assert.Equal(t, 5, store.stock("p1"), "rollback restores the decrement")
	assert.Empty(t, store.placed())
}

func TestPlaceCOD_FulfillmentUnreachable(t *testing.T) {
	store := newMemStore(tee(5))
	f := &stubFulfillment{err: fmt.Errorf("%w: connect refused", qikink.ErrUnreachable)}
	svc := newService(store, f, nil, nil)

	_, err := svc.PlaceCOD(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, "fulfillment_unreachable", Kind(err))
	assert.Equal(t, 5, store.stock("p1"))
}

func TestPlaceCOD_MultiItemRollbackIsAtomic(t *testing.T) {
	p2 := orders.Product{ID: "p2", SKU: "Hood-Bk-M-Plain-Fr-dtg", Name: "Hoodie", PricePaise: 99900, Stock: 1}
	store := newMemStore(tee(5), p2)
	svc := newService(store, &stubFulfillment{}, nil, nil)

	req := validRequest()
	req.Items = append(req.Items, ItemRequest{ProductID: "p2", Quantity: 3, Color: "Gr", Size: "L"})

	_, err := svc.PlaceCOD(context.Background(), req)
	require.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 5, store.stock("p1"), "first item's decrement rolled back")
	assert.Equal(t, 1, store.stock("p2"))
}

func TestPlaceCOD_InsertFailureAfterExternalCreate(t *testing.T) {
	store := newMemStore(tee(5))
	store.insertErr = errors.New("connection reset")
	f := &stubFulfillment{res: qikink.OrderResult{OrderID: "987654"}}
	svc := newService(store, f, nil, nil)

	_, err := svc.PlaceCOD(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Equal(t, "order_inconsistent", Kind(err))
	assert.Contains(t, err.Error(), "987654", "provider order id carried for reconciliation")

	assert.Equal(t, 5, store.stock("p1"), "local state fully rolled back")
	assert.Empty(t, store.placed())
}

func TestPlaceCOD_CommitFailureAfterExternalCreate(t *testing.T) {
	store := newMemStore(tee(5))
	store.commitErr = errors.New("commit: broken pipe")
	f := &stubFulfillment{res: qikink.OrderResult{OrderID: "111222"}}
	svc := newService(store, f, nil, nil)

	_, err := svc.PlaceCOD(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrInconsistent)
	assert.Contains(t, err.Error(), "111222")
}

func TestPlaceCOD_Validation(t *testing.T) {
	store := newMemStore(tee(5))
	f := &stubFulfillment{}
	svc := newService(store, f, nil, nil)

	mutate := []struct {
		name string
		fn   func(*PlaceOrderRequest)
	}{
		{"no items", func(r *PlaceOrderRequest) { r.Items = nil }},
		{"zero quantity", func(r *PlaceOrderRequest) { r.Items[0].Quantity = 0 }},
		{"missing color", func(r *PlaceOrderRequest) { r.Items[0].Color = "" }},
		{"missing product id", func(r *PlaceOrderRequest) { r.Items[0].ProductID = "" }},
		{"missing customer", func(r *PlaceOrderRequest) { r.CustomerID = "" }},
		{"incomplete address", func(r *PlaceOrderRequest) { r.DeliveryAddress.Pincode = "" }},
	}
	for _, tt := range mutate {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.fn(&req)
			_, err := svc.PlaceCOD(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, "validation_error", Kind(err))
		})
	}
	assert.Equal(t, 0, f.calls)
	assert.Equal(t, 5, store.stock("p1"))
}

func TestPlaceCOD_MalformedCatalogSKU(t *testing.T) {
	p := tee(5)
	p.SKU = "nodashes"
	store := newMemStore(p)
	svc := newService(store, &stubFulfillment{}, nil, nil)

	_, err := svc.PlaceCOD(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, "validation_error", Kind(err))
	assert.Equal(t, 5, store.stock("p1"))
}

func TestPlacePrepaid_Success(t *testing.T) {
	store := newMemStore(tee(5))
	f := &stubFulfillment{res: qikink.OrderResult{OrderID: "987654"}}
	pay := &stubPayments{payment: razorpay.Payment{ID: "pay_1", Status: razorpay.StatusCaptured}}
	svc := newService(store, f, pay, nil)

	req := validRequest()
	req.PaymentID = "pay_1"
	req.RazorpayOrderID = "order_xyz"

	ord, err := svc.PlacePrepaid(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPaid, ord.PaymentStatus)
	assert.Equal(t, orders.MethodRazorpay, ord.PaymentMethod)
	assert.Equal(t, "pay_1", ord.PaymentID)
	assert.Equal(t, "order_xyz", ord.RazorpayOrderID)
	assert.Equal(t, "PREPAID", f.last.Gateway)
}

func TestPlacePrepaid_NotCaptured(t *testing.T) {
	store := newMemStore(tee(5))
	f := &stubFulfillment{}
	pay := &stubPayments{payment: razorpay.Payment{ID: "pay_1", Status: "authorized"}}
	svc := newService(store, f, pay, nil)

	req := validRequest()
	req.PaymentID = "pay_1"

	_, err := svc.PlacePrepaid(context.Background(), req)
	require.ErrorIs(t, err, ErrPaymentNotCaptured)
	assert.Equal(t, 5, store.stock("p1"), "nothing reserved before verification passes")
	assert.Equal(t, 0, f.calls)
}

func TestPlacePrepaid_MissingPaymentID(t *testing.T) {
	svc := newService(newMemStore(tee(5)), &stubFulfillment{}, &stubPayments{}, nil)
	_, err := svc.PlacePrepaid(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, "validation_error", Kind(err))
}

func TestPlace_ConcurrentNeverOversells(t *testing.T) {
	store := newMemStore(tee(5))
	f := &stubFulfillment{res: qikink.OrderResult{OrderID: "987654"}}
	svc := newService(store, f, nil, nil)

	const workers = 8 // 8 x qty 2 against stock 5: at most 2 can win
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceCOD(context.Background(), validRequest())
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	assert.Equal(t, 2, won)
	assert.Equal(t, 1, store.stock("p1"))
	assert.GreaterOrEqual(t, store.stock("p1"), 0, "stock never negative")
	assert.Len(t, store.placed(), won)
}

func TestRupees(t *testing.T) {
	tests := []struct {
		paise int
		want  string
	}{
		{49900, "499.00"},
		{105, "1.05"},
		{7, "0.07"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rupees(tt.paise))
	}
}
