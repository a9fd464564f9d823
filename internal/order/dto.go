package order

// Line is one (product, optional variant, quantity) request within a checkout.
type Line struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrderRequest is the checkout payload.
type PlaceOrderRequest struct {
	UserID string `json:"user_id"`
	Lines  []Line `json:"lines"`
}

// AttachCouponRequest applies a coupon code to an existing order.
type AttachCouponRequest struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
}
