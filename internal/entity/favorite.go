package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Favorite is one product on a principal's wishlist. A principal can hold
// each product at most once; adding it again keeps the existing entry.
type Favorite struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	SessionKey string    `json:"session_key,omitempty"`
	ProductID  string    `json:"product_id"`
	CreatedAt  time.Time `json:"created_at"`

	// Denormalized from the product row on read; not stored with the entry.
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}
