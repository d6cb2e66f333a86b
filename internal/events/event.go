package events

import (
	"context"
	"time"

	"comanda/internal/models"

	"github.com/shopspring/decimal"
)

// OrderPlaced is the type of the event emitted for every committed order
const OrderPlaced = "order.placed"

// OrderEvent is the public payload describing a committed order
type OrderEvent struct {
	Type       string          `json:"type"`
	Reference  string          `json:"reference"`
	OrderID    uint            `json:"order_id"`
	CustomerID uint            `json:"customer_id"`
	Total      decimal.Decimal `json:"total"`
	PlacedAt   time.Time       `json:"placed_at"`
	Lines      []EventLine     `json:"lines"`
}

// EventLine is one sold menu within an OrderEvent
type EventLine struct {
	MenuID   uint            `json:"menu_id"`
	Menu     string          `json:"menu"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// NewOrderEvent builds the event for a committed order
func NewOrderEvent(order *models.Order) OrderEvent {
	ev := OrderEvent{
		Type:       OrderPlaced,
		Reference:  order.Reference,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Total:      order.Total,
		PlacedAt:   order.PlacedAt,
		Lines:      make([]EventLine, 0, len(order.Lines)),
	}
	for _, l := range order.Lines {
		ev.Lines = append(ev.Lines, EventLine{
			MenuID:   l.MenuID,
			Menu:     l.MenuName,
			Quantity: l.Quantity,
			Subtotal: l.Subtotal,
		})
	}
	return ev
}

// Publisher delivers order events to one destination
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}
