package kitchen

import (
	"context"
	"sync"
	"testing"
	"time"

	"comanda/internal/database"
	"comanda/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// recorder captures observer notifications
type recorder struct {
	mu        sync.Mutex
	committed []*models.Order
	aborted   []Outcome
	stock     []models.Ingredient
	removed   []string
}

func (r *recorder) OrderCommitted(order *models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, order)
}

func (r *recorder) OrderAborted(outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted = append(r.aborted, outcome)
}

func (r *recorder) StockChanged(ing models.Ingredient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock = append(r.stock, ing)
}

func (r *recorder) IngredientRemoved(ing models.Ingredient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, ing.Name)
}

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestKitchen(t *testing.T, opts ...Option) *Kitchen {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tick := testEpoch
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Minute)
		return tick
	}
	return New(db, append([]Option{WithClock(clock)}, opts...)...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustStock(t *testing.T, k *Kitchen, name string, amount string) *models.Ingredient {
	t.Helper()
	ing, err := k.Ledger.AddStock(context.Background(), name, "unid", dec(amount))
	require.NoError(t, err)
	return ing
}

func mustMenu(t *testing.T, k *Kitchen, name, price string, lines ...LineInput) *models.Menu {
	t.Helper()
	menu, err := k.Catalog.CreateMenu(context.Background(), MenuInput{Name: name, Price: dec(price), Lines: lines})
	require.NoError(t, err)
	return menu
}

func mustCustomer(t *testing.T, k *Kitchen) *models.Customer {
	t.Helper()
	c, err := k.Customers.Create(context.Background(), "ana perez", "ana@example.com")
	require.NoError(t, err)
	return c
}

func line(ingredient, qty string) LineInput {
	return LineInput{Ingredient: ingredient, Quantity: dec(qty)}
}

func stockOf(t *testing.T, k *Kitchen, name string) string {
	t.Helper()
	ing, err := k.Ledger.GetByName(context.Background(), name)
	require.NoError(t, err)
	return ing.Stock.String()
}
