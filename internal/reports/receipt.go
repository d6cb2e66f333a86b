package reports

import (
	"time"

	"comanda/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the Chilean IVA
var DefaultTaxRate = decimal.NewFromFloat(0.19)

// ReceiptLine is one printed line of a receipt
type ReceiptLine struct {
	Menu      string          `json:"menu"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Receipt holds the printable totals of an order. Tax is added on top of
// the menu prices.
type Receipt struct {
	Reference string          `json:"reference"`
	PlacedAt  time.Time       `json:"placed_at"`
	Lines     []ReceiptLine   `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
}

// NewReceipt builds the receipt of an order from its frozen lines
func NewReceipt(order *models.Order, taxRate decimal.Decimal) Receipt {
	r := Receipt{
		Reference: order.Reference,
		PlacedAt:  order.PlacedAt,
		Lines:     make([]ReceiptLine, 0, len(order.Lines)),
		Subtotal:  decimal.Zero,
		TaxRate:   taxRate,
	}
	for _, l := range order.Lines {
		r.Lines = append(r.Lines, ReceiptLine{
			Menu:      l.MenuName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal,
		})
		r.Subtotal = r.Subtotal.Add(l.Subtotal)
	}
	r.Tax = r.Subtotal.Mul(taxRate).Round(2)
	r.Total = r.Subtotal.Add(r.Tax)
	return r
}
