package kitchen

import (
	"errors"
	"fmt"
	"math"
)

// CartItem is one (menu, quantity) pair of an order being built
type CartItem struct {
	MenuID   uint `json:"menu_id"`
	Quantity int  `json:"quantity"`
}

// Cart collects items before an order is placed. Adding a menu that is
// already in the cart increases its quantity instead of adding a line.
type Cart struct {
	items []CartItem
}

// Add puts qty servings of a menu in the cart
func (c *Cart) Add(menuID uint, qty int) error {
	if qty <= 0 {
		return invalid("quantity", "must be greater than 0, got %d", qty)
	}
	for i := range c.items {
		if c.items[i].MenuID == menuID {
			if qty > math.MaxInt-c.items[i].Quantity {
				return invalid("quantity", "too many servings of menu %d", menuID)
			}
			c.items[i].Quantity += qty
			return nil
		}
	}
	c.items = append(c.items, CartItem{MenuID: menuID, Quantity: qty})
	return nil
}

// Remove takes one serving of a menu out of the cart, dropping the line at
// zero. It reports whether the menu was in the cart.
func (c *Cart) Remove(menuID uint) bool {
	for i := range c.items {
		if c.items[i].MenuID != menuID {
			continue
		}
		c.items[i].Quantity--
		if c.items[i].Quantity <= 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		}
		return true
	}
	return false
}

// Items returns a copy of the cart lines in insertion order
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of distinct menus in the cart
func (c *Cart) Len() int {
	return len(c.items)
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.items = nil
}

// coalesce merges cart lines naming the same menu, keeping first-seen order
func coalesce(items []CartItem) ([]CartItem, error) {
	var cart Cart
	for i, item := range items {
		if err := cart.Add(item.MenuID, item.Quantity); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Field = fmt.Sprintf("cart[%d].quantity", i)
			}
			return nil, err
		}
	}
	return cart.items, nil
}
