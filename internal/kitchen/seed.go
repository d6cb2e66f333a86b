package kitchen

import (
	"context"
	"fmt"

	"comanda/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedLine struct {
	ingredient string
	quantity   int64
}

type seedMenu struct {
	name  string
	price int64
	lines []seedLine
}

// defaultMenus is the house menu card
var defaultMenus = []seedMenu{
	{"Completo", 1800, []seedLine{{"Vienesa", 1}, {"Pan de completo", 1}, {"Palta", 1}, {"Tomate", 1}}},
	{"Hamburguesa", 3500, []seedLine{{"Churrasco de carne", 1}, {"Pan de hamburguesa", 1}, {"Lamina de queso", 1}}},
	{"Empanada", 1000, []seedLine{{"Carne", 1}, {"Cebolla", 1}, {"Masa de empanada", 1}}},
	{"Papas fritas", 500, []seedLine{{"Papas", 5}}},
	{"Pepsi", 1100, []seedLine{{"Pepsi", 1}}},
	{"Coca cola", 1200, []seedLine{{"Coca cola", 1}}},
	{"Panqueques", 2000, []seedLine{{"Panqueques", 2}, {"Manjar", 1}, {"Azucar flor", 1}}},
	{"Pollo frito", 2800, []seedLine{{"Presa de pollo", 1}, {"Harina", 1}, {"Aceite", 1}}},
	{"Ensalada Mixta", 1500, []seedLine{{"Lechuga", 1}, {"Tomate", 1}, {"Zanahoria", 1}}},
	{"Chorrillana", 3500, []seedLine{{"Carne", 2}, {"Huevos", 2}, {"Papas", 3}, {"Cebolla", 1}}},
}

// SeedStock is the starting stock given to every seeded ingredient
const SeedStock = 50

// Seed loads the default menu card and starter stock into an empty
// catalog. It reports whether anything was written.
func (k *Kitchen) Seed(ctx context.Context) (bool, error) {
	existing, err := k.Catalog.ListAll(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	stocked := map[string]bool{}
	for _, m := range defaultMenus {
		in := MenuInput{Name: m.name, Price: decimal.NewFromInt(m.price)}
		for _, l := range m.lines {
			if !stocked[l.ingredient] {
				if _, err := k.Ledger.AddStock(ctx, l.ingredient, string(models.UnitPiece), decimal.NewFromInt(SeedStock)); err != nil {
					return false, fmt.Errorf("failed to seed ingredient %q: %w", l.ingredient, err)
				}
				stocked[l.ingredient] = true
			}
			in.Lines = append(in.Lines, LineInput{Ingredient: l.ingredient, Quantity: decimal.NewFromInt(l.quantity)})
		}
		if _, err := k.Catalog.CreateMenu(ctx, in); err != nil {
			return false, fmt.Errorf("failed to seed menu %q: %w", m.name, err)
		}
	}

	k.Catalog.logger.Info("Default menu card seeded",
		zap.Int("menus", len(defaultMenus)),
		zap.Int("ingredients", len(stocked)))
	return true, nil
}
