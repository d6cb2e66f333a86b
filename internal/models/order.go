package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a committed sale to a customer
type Order struct {
	ID         uint            `gorm:"primary_key" json:"id"`
	Reference  string          `gorm:"unique_index;not null" json:"reference"`
	CustomerID uint            `gorm:"index;not null" json:"customer_id"`
	PlacedAt   time.Time       `gorm:"index" json:"placed_at"`
	Total      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
	Lines      []OrderLine     `gorm:"foreignkey:OrderID;association_autoupdate:false;association_autocreate:false" json:"lines"`
}

// TableName sets the table name for Order
func (Order) TableName() string {
	return "orders"
}

// Units returns the number of servings across all lines
func (o *Order) Units() int {
	units := 0
	for _, line := range o.Lines {
		units += line.Quantity
	}
	return units
}

// OrderLine is a menu sold within an order. Name and price are frozen at
// the time of sale so later catalog edits do not rewrite history.
type OrderLine struct {
	ID        uint            `gorm:"primary_key" json:"id"`
	OrderID   uint            `gorm:"index;not null" json:"order_id"`
	MenuID    uint            `gorm:"index;not null" json:"menu_id"`
	MenuName  string          `json:"menu_name"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"subtotal"`
	Position  int             `json:"position"`
}

// TableName sets the table name for OrderLine
func (OrderLine) TableName() string {
	return "order_lines"
}
