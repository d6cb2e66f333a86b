package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Menu represents a sellable dish with its price and recipe
type Menu struct {
	ID          uint            `gorm:"primary_key" json:"id"`
	Name        string          `gorm:"unique_index;not null" json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	Lines       []RecipeLine    `gorm:"foreignkey:MenuID;association_autoupdate:false;association_autocreate:false" json:"lines"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName sets the table name for Menu
func (Menu) TableName() string {
	return "menus"
}

// HasIngredient checks if the recipe uses a specific ingredient
func (m *Menu) HasIngredient(ingredientID uint) bool {
	for _, line := range m.Lines {
		if line.IngredientID == ingredientID {
			return true
		}
	}
	return false
}

// HasRecipe reports whether the menu consumes any stock at all
func (m *Menu) HasRecipe() bool {
	return len(m.Lines) > 0
}
