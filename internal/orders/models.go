package orders

import "time"

type Product struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CategoryID  string    `json:"category_id,omitempty"`
	PricePaise  int       `json:"price_paise"`
	Stock       int       `json:"stock"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeliveryAddress is snapshotted onto the order at placement time.
type DeliveryAddress struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	DoorNo   string `json:"door_no"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
}

// OrderItem snapshots product name, price and the variant-substituted SKU so
// later catalog edits never alter historical orders.
type OrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"quantity"`
	PricePaise  int    `json:"price_paise"`
	Size        string `json:"size"`
	Color       string `json:"color"`
	SKU         string `json:"sku"`
}

type Order struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"` // human-readable, e.g. ORD0042
	CustomerID      string          `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	Items           []OrderItem     `json:"items"`
	DeliveryAddress DeliveryAddress `json:"delivery_address"`
	TotalPaise      int             `json:"total_paise"`
	QikinkOrderID   string          `json:"qikink_order_id,omitempty"`
	RazorpayOrderID string          `json:"razorpay_order_id,omitempty"`
	PaymentID       string          `json:"payment_id,omitempty"`
	AWBNo           string          `json:"awb_no,omitempty"`
	Status          Status          `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentMethod   string          `json:"payment_method"`
	OrderType       string          `json:"order_type,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
