package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusPaid       OrderStatus = "paid"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentCOD   PaymentMethod = "cod"
	PaymentClick PaymentMethod = "click"
	PaymentPayme PaymentMethod = "payme"
	PaymentCard  PaymentMethod = "card"
	PaymentNone  PaymentMethod = "none"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentClick, PaymentPayme, PaymentCard, PaymentNone:
		return true
	}
	return false
}

// Order is an immutable snapshot of a completed checkout. Only Status may
// change after creation.
type Order struct {
	ID         string `json:"id"`
	Number     string `json:"order_number"`
	UserID     string `json:"user_id,omitempty"`
	SessionKey string `json:"session_key,omitempty"`

	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`

	// Contact snapshot taken at checkout time.
	FullName        string `json:"full_name"`
	ContactPhone    string `json:"contact_phone"`
	DeliveryAddress string `json:"delivery_address"`
	Notes           string `json:"notes,omitempty"`

	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TotalItems    int             `json:"total_items"`

	Lines []OrderLine `json:"lines"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderLine freezes product name and unit price at order time. Later price
// changes on the product never touch these fields.
type OrderLine struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	IsSalePrice bool            `json:"is_sale_price"`
}

func (o *Order) Cancellable() bool {
	return o.Status == StatusPending || o.Status == StatusProcessing
}
