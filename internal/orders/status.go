package orders

type Status string

const (
	StatusCreated       Status = "CREATED"
	StatusConfirmed     Status = "CONFIRMED"
	StatusPaymentFailed Status = "PAYMENT_FAILED"
	StatusProcessing    Status = "PROCESSING"
	StatusShipped       Status = "SHIPPED"
	StatusDelivered     Status = "DELIVERED"
	StatusCancelled     Status = "CANCELLED"
	StatusDisputed      Status = "DISPUTED"
	StatusRefunded      Status = "REFUNDED"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
	PaymentCOD      PaymentStatus = "COD"
)

const (
	MethodCOD      = "COD"
	MethodRazorpay = "RAZORPAY"
)

const (
	TypeBuyNow       = "BUY_NOW"
	TypeCartCheckout = "CART_CHECKOUT"
)

var validNext = map[Status]map[Status]bool{
	StatusCreated:       {StatusConfirmed: true, StatusPaymentFailed: true, StatusCancelled: true},
	StatusConfirmed:     {StatusProcessing: true, StatusShipped: true, StatusCancelled: true},
	StatusProcessing:    {StatusShipped: true, StatusCancelled: true},
	StatusShipped:       {StatusDelivered: true, StatusDisputed: true},
	StatusDelivered:     {StatusDisputed: true, StatusRefunded: true},
	StatusDisputed:      {StatusRefunded: true},
	StatusPaymentFailed: {},
	StatusCancelled:     {},
	StatusRefunded:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
