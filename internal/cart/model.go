package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Identity names the cart owner explicitly: an authenticated user or an
// anonymous session. Exactly one side is set; it is never read from ambient
// request state.
type Identity struct {
	UserID       string
	SessionToken string
}

func ForUser(userID string) Identity        { return Identity{UserID: userID} }
func ForGuest(sessionToken string) Identity { return Identity{SessionToken: sessionToken} }

func (id Identity) IsGuest() bool { return id.UserID == "" }

func (id Identity) Valid() bool {
	return (id.UserID != "") != (id.SessionToken != "")
}

type Cart struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id,omitempty"`
	SessionToken string          `json:"session_token,omitempty"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Item struct {
	ID        string `json:"id"`
	CartID    string `json:"cart_id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
	// Price is the effective unit price snapshotted when the line was last
	// touched; Subtotal = Price * Quantity.
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// ClampedLine reports a merge line whose quantity was reduced to fit the
// stock still available.
type ClampedLine struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Requested int    `json:"requested"`
	Kept      int    `json:"kept"`
}

// MergeResult summarizes a guest-to-user consolidation. Merging an absent or
// already-merged guest cart yields a zero result.
type MergeResult struct {
	MergedLines int           `json:"merged_lines"`
	Clamped     []ClampedLine `json:"clamped,omitempty"`
}
