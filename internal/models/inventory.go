package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ingredient represents a stocked ingredient in the kitchen inventory
type Ingredient struct {
	ID        uint            `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"unique_index;not null" json:"name"`
	Unit      string          `json:"unit"`
	Stock     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName sets the table name for Ingredient
func (Ingredient) TableName() string {
	return "ingredients"
}

// Covers reports whether the current stock satisfies the given demand
func (i *Ingredient) Covers(demand decimal.Decimal) bool {
	return i.Stock.GreaterThanOrEqual(demand)
}

// InventoryUnit represents the unit of measurement for an ingredient
type InventoryUnit string

const (
	// Weight units
	UnitGram     InventoryUnit = "g"
	UnitKilogram InventoryUnit = "kg"

	// Volume units
	UnitMilliliter InventoryUnit = "ml"
	UnitLiter      InventoryUnit = "l"

	// Count units
	UnitPiece InventoryUnit = "unid"
)
