package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Slug      string              `json:"slug"`
	Price     decimal.Decimal     `json:"price"`
	SalePrice decimal.NullDecimal `json:"sale_price"`
	Stock     int                 `json:"stock"`
	IsActive  bool                `json:"is_active"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	DeletedAt *time.Time          `json:"deleted_at,omitempty"`
}

// OnSale reports whether the sale price applies. A sale price that is not
// strictly below the regular price is ignored.
func (p *Product) OnSale() bool {
	return p.SalePrice.Valid && p.SalePrice.Decimal.LessThan(p.Price)
}

// UnitPrice is the price a buyer pays right now for one unit.
func (p *Product) UnitPrice() decimal.Decimal {
	if p.OnSale() {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// Sellable reports whether the product can be put into an order at all.
func (p *Product) Sellable() bool {
	return p.IsActive && p.DeletedAt == nil
}
