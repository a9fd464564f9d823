package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusPacked     Status = "packed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// fulfillment is the forward path; cancelled and refunded are terminal exits.
var statusRank = map[Status]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusPacked:     2,
	StatusProcessing: 3,
	StatusShipped:    4,
	StatusDelivered:  5,
}

func ValidStatus(s Status) bool {
	if s == StatusCancelled || s == StatusRefunded {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether an order may move from one status to the
// next: one step at a time along the fulfillment path, or out to
// cancelled/refunded from any non-terminal state.
func CanTransition(from, to Status) bool {
	if from == StatusCancelled || from == StatusRefunded || from == StatusDelivered {
		return false
	}
	if to == StatusCancelled || to == StatusRefunded {
		return true
	}
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	return ok && tr == fr+1
}

// Order is immutable once placed except for its status fields and the
// coupon/shipping totals adjustments. Invariant at every committed state:
// TotalAmount = Subtotal + Tax + ShippingFee - Discount.
type Order struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id"`
	// ParentID is reserved for splitting multi-seller orders; always empty today.
	ParentID        string          `json:"parent_id,omitempty"`
	Status          Status          `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
	Tax             decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	ShippingAddress *Address        `json:"shipping_address,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Item snapshots the product/variant identity and resolved price at order
// time so later catalog edits cannot change what was sold. Immutable.
type Item struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Address is the locality snapshot used to resolve the shipping fee bracket.
// Free-form; never validated against a geocoding service.
type Address struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code,omitempty"`
}
