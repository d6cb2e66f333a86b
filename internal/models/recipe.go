package models

import (
	"github.com/shopspring/decimal"
)

// RecipeLine is one ingredient requirement of a menu, consumed once per serving
type RecipeLine struct {
	ID           uint            `gorm:"primary_key" json:"id"`
	MenuID       uint            `gorm:"index;not null" json:"menu_id"`
	IngredientID uint            `gorm:"index;not null" json:"ingredient_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Position     int             `json:"position"`
	// Loaded on read, never written through the line
	Ingredient Ingredient `gorm:"association_autoupdate:false;association_autocreate:false" json:"ingredient"`
}

// TableName sets the table name for RecipeLine
func (RecipeLine) TableName() string {
	return "recipe_lines"
}

// Servings returns how many times the line can be satisfied by stock
func (l *RecipeLine) Servings(stock decimal.Decimal) int64 {
	if !l.Quantity.IsPositive() {
		return 0
	}
	return stock.Div(l.Quantity).Floor().IntPart()
}
