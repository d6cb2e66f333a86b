// Package reports aggregates committed orders into sales figures and receipts.
// Every figure is derived from the frozen order lines; live stock is never read.
package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"comanda/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Period groups sales by calendar bucket
type Period string

const (
	Day   Period = "day"
	Month Period = "month"
	Year  Period = "year"
)

var periodLayouts = map[Period]string{
	Day:   "2006-01-02",
	Month: "2006-01",
	Year:  "2006",
}

// ParsePeriod validates a period name, defaulting to Day when empty
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return Day, nil
	}
	p := Period(s)
	if _, ok := periodLayouts[p]; !ok {
		return "", fmt.Errorf("unknown period %q, want day, month or year", s)
	}
	return p, nil
}

// OrderSource lists committed orders with their lines
type OrderSource interface {
	ListAll(ctx context.Context) ([]models.Order, error)
}

// MenuSource lists menus with their current recipes
type MenuSource interface {
	ListAll(ctx context.Context) ([]models.Menu, error)
}

// PeriodSales is the revenue of one calendar bucket
type PeriodSales struct {
	Period  string          `json:"period"`
	Orders  int             `json:"orders"`
	Units   int             `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
}

// MenuSales is how much of one menu was sold
type MenuSales struct {
	MenuID  uint            `json:"menu_id"`
	Menu    string          `json:"menu"`
	Units   int             `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
}

// IngredientUsage is the stock consumed by sold menus
type IngredientUsage struct {
	IngredientID uint            `json:"ingredient_id"`
	Ingredient   string          `json:"ingredient"`
	Unit         string          `json:"unit"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// Service builds reports
type Service struct {
	orders OrderSource
	menus  MenuSource
	logger *zap.Logger
	loc    *time.Location
}

// NewService creates a report service. Periods are cut in loc; nil means UTC.
func NewService(orders OrderSource, menus MenuSource, logger *zap.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{orders: orders, menus: menus, logger: logger, loc: loc}
}

// SalesByPeriod returns revenue per day, month or year in chronological order
func (s *Service) SalesByPeriod(ctx context.Context, period Period) ([]PeriodSales, error) {
	layout, ok := periodLayouts[period]
	if !ok {
		return nil, fmt.Errorf("unknown period %q", period)
	}
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	buckets := make(map[string]*PeriodSales)
	for _, o := range orders {
		key := o.PlacedAt.In(s.loc).Format(layout)
		b, ok := buckets[key]
		if !ok {
			b = &PeriodSales{Period: key, Revenue: decimal.Zero}
			buckets[key] = b
		}
		b.Orders++
		b.Units += o.Units()
		b.Revenue = b.Revenue.Add(o.Total)
	}

	out := make([]PeriodSales, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	// the layouts sort lexically in time order
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })

	s.logger.Debug("Built sales report", zap.String("period", string(period)), zap.Int("buckets", len(out)))
	return out, nil
}

// MenuDistribution returns units sold per menu, best sellers first.
// Names come from the order lines, so renamed or deleted menus keep the
// name they were sold under.
func (s *Service) MenuDistribution(ctx context.Context) ([]MenuSales, error) {
	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	byMenu := make(map[uint]*MenuSales)
	for _, o := range orders {
		for _, l := range o.Lines {
			m, ok := byMenu[l.MenuID]
			if !ok {
				m = &MenuSales{MenuID: l.MenuID, Menu: l.MenuName, Revenue: decimal.Zero}
				byMenu[l.MenuID] = m
			}
			m.Units += l.Quantity
			m.Revenue = m.Revenue.Add(l.Subtotal)
		}
	}

	out := make([]MenuSales, 0, len(byMenu))
	for _, m := range byMenu {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Units != out[j].Units {
			return out[i].Units > out[j].Units
		}
		return out[i].Menu < out[j].Menu
	})
	return out, nil
}

// IngredientUsage estimates the stock consumed by every sale, multiplying
// the units sold of each menu by its current recipe. Sales of menus that no
// longer exist are left out.
func (s *Service) IngredientUsage(ctx context.Context) ([]IngredientUsage, error) {
	menus, err := s.menus.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list menus: %w", err)
	}
	sold, err := s.MenuDistribution(ctx)
	if err != nil {
		return nil, err
	}

	recipes := make(map[uint]models.Menu, len(menus))
	for _, m := range menus {
		recipes[m.ID] = m
	}

	usage := make(map[uint]*IngredientUsage)
	for _, ms := range sold {
		menu, ok := recipes[ms.MenuID]
		if !ok {
			continue
		}
		units := decimal.NewFromInt(int64(ms.Units))
		for _, line := range menu.Lines {
			u, ok := usage[line.IngredientID]
			if !ok {
				u = &IngredientUsage{
					IngredientID: line.IngredientID,
					Ingredient:   line.Ingredient.Name,
					Unit:         line.Ingredient.Unit,
					Quantity:     decimal.Zero,
				}
				usage[line.IngredientID] = u
			}
			u.Quantity = u.Quantity.Add(line.Quantity.Mul(units))
		}
	}

	out := make([]IngredientUsage, 0, len(usage))
	for _, u := range usage {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ingredient < out[j].Ingredient })
	return out, nil
}
