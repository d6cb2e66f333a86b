package kitchen

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/jinzhu/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completoKitchen(t *testing.T, opts ...Option) (*Kitchen, uint, uint) {
	t.Helper()
	k := newTestKitchen(t, opts...)
	mustStock(t, k, "Vienesa", "30")
	mustStock(t, k, "Pan de completo", "30")
	mustStock(t, k, "Palta", "30")
	mustStock(t, k, "Tomate", "30")
	menu := mustMenu(t, k, "Completo", "1800",
		line("Vienesa", "1"), line("Pan de completo", "1"), line("Palta", "1"), line("Tomate", "1"))
	customer := mustCustomer(t, k)
	return k, menu.ID, customer.ID
}

func TestEngine_CompletoScenario(t *testing.T) {
	k, completo, customer := completoKitchen(t)
	ctx := context.Background()

	order, err := k.Engine.PlaceOrder(ctx, customer, []CartItem{{MenuID: completo, Quantity: 10}})
	require.NoError(t, err)
	assert.Equal(t, "18000", order.Total.String())
	assert.NotEmpty(t, order.Reference)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "Completo", order.Lines[0].MenuName)
	assert.Equal(t, "1800", order.Lines[0].UnitPrice.String())
	assert.Equal(t, "20", stockOf(t, k, "Vienesa"))

	_, err = k.Engine.PlaceOrder(ctx, customer, []CartItem{{MenuID: completo, Quantity: 1000}})
	require.Error(t, err)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	require.Len(t, stockErr.Shortfalls, 4)
	assert.Equal(t, "Palta", stockErr.Shortfalls[0].Ingredient)
	assert.Equal(t, "Vienesa", stockErr.Shortfalls[3].Ingredient)
	assert.Equal(t, "1000", stockErr.Shortfalls[3].Required.String())
	assert.Equal(t, "20", stockErr.Shortfalls[3].Available.String())
	assert.Equal(t, "980", stockErr.Shortfalls[3].Missing().String())

	assert.Equal(t, "20", stockOf(t, k, "Vienesa"))
	orders, err := k.History.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestEngine_AggregatesDemandAcrossLines(t *testing.T) {
	k := newTestKitchen(t)
	ctx := context.Background()
	mustStock(t, k, "Papas", "9")
	a := mustMenu(t, k, "Papas chicas", "500", line("Papas", "2"))
	b := mustMenu(t, k, "Papas grandes", "900", line("Papas", "3"))
	customer := mustCustomer(t, k)

	// each line alone fits in 9, together they need 10
	cart := []CartItem{{MenuID: a.ID, Quantity: 2}, {MenuID: b.ID, Quantity: 2}}
	_, err := k.Engine.PlaceOrder(ctx, customer.ID, cart)
	require.True(t, IsInsufficientStock(err))
	assert.Equal(t, "9", stockOf(t, k, "Papas"))

	_, err = k.Ledger.AddStock(ctx, "Papas", "", dec("1"))
	require.NoError(t, err)
	order, err := k.Engine.PlaceOrder(ctx, customer.ID, cart)
	require.NoError(t, err)
	assert.Equal(t, "2800", order.Total.String())
	assert.Equal(t, "0", stockOf(t, k, "Papas"))
}

func TestEngine_AllOrNothing(t *testing.T) {
	rec := &recorder{}
	k := newTestKitchen(t, WithObserver(rec))
	ctx := context.Background()
	mustStock(t, k, "Carne", "10")
	mustStock(t, k, "Huevos", "1")
	mustStock(t, k, "Papas", "10")
	chorrillana := mustMenu(t, k, "Chorrillana", "3500", line("Carne", "2"), line("Huevos", "2"), line("Papas", "3"))
	customer := mustCustomer(t, k)
	rec.stock = nil

	_, err := k.Engine.PlaceOrder(ctx, customer.ID, []CartItem{{MenuID: chorrillana.ID, Quantity: 1}})
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	require.Len(t, stockErr.Shortfalls, 1)
	assert.Equal(t, "Huevos", stockErr.Shortfalls[0].Ingredient)

	assert.Equal(t, "10", stockOf(t, k, "Carne"))
	assert.Equal(t, "1", stockOf(t, k, "Huevos"))
	assert.Equal(t, "10", stockOf(t, k, "Papas"))

	orders, err := k.History.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	assert.Empty(t, rec.committed)
	assert.Empty(t, rec.stock)
	assert.Equal(t, []Outcome{OutcomeInsufficientStock}, rec.aborted)
}

func TestEngine_PricingIgnoresCartOrder(t *testing.T) {
	k := newTestKitchen(t)
	ctx := context.Background()
	pepsi := mustMenu(t, k, "Pepsi", "1100")
	empanada := mustMenu(t, k, "Empanada", "1000")
	customer := mustCustomer(t, k)

	first, err := k.Engine.PlaceOrder(ctx, customer.ID, []CartItem{{MenuID: pepsi.ID, Quantity: 2}, {MenuID: empanada.ID, Quantity: 3}})
	require.NoError(t, err)
	second, err := k.Engine.PlaceOrder(ctx, customer.ID, []CartItem{{MenuID: empanada.ID, Quantity: 3}, {MenuID: pepsi.ID, Quantity: 2}})
	require.NoError(t, err)

	assert.Equal(t, "5200", first.Total.String())
	assert.True(t, first.Total.Equal(second.Total))
}

func TestEngine_CoalescesRepeatedMenus(t *testing.T) {
	k, completo, customer := completoKitchen(t)

	order, err := k.Engine.PlaceOrder(context.Background(), customer, []CartItem{
		{MenuID: completo, Quantity: 1},
		{MenuID: completo, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 3, order.Lines[0].Quantity)
	assert.Equal(t, "5400", order.Lines[0].Subtotal.String())
	assert.Equal(t, "27", stockOf(t, k, "Tomate"))
}

func TestEngine_RejectsInvalidCarts(t *testing.T) {
	rec := &recorder{}
	k, completo, customer := completoKitchen(t, WithObserver(rec))
	ctx := context.Background()

	tests := []struct {
		name     string
		customer uint
		cart     []CartItem
		check    func(error) bool
	}{
		{"unknown customer", 999, []CartItem{{MenuID: completo, Quantity: 1}}, IsNotFound},
		{"empty cart", customer, nil, IsValidation},
		{"zero quantity", customer, []CartItem{{MenuID: completo, Quantity: 0}}, IsValidation},
		{"negative quantity", customer, []CartItem{{MenuID: completo, Quantity: -2}}, IsValidation},
		{"unknown menu", customer, []CartItem{{MenuID: completo, Quantity: 1}, {MenuID: 999, Quantity: 1}}, IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.Engine.PlaceOrder(ctx, tt.customer, tt.cart)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
			assert.Equal(t, OutcomeInvalid, OutcomeOf(err))
		})
	}

	assert.Equal(t, "30", stockOf(t, k, "Vienesa"))
	assert.Len(t, rec.aborted, len(tests))
}

func TestEngine_RejectsOverflowingQuantities(t *testing.T) {
	k, completo, customer := completoKitchen(t)
	ctx := context.Background()

	cart := []CartItem{
		{MenuID: completo, Quantity: math.MaxInt},
		{MenuID: completo, Quantity: math.MaxInt},
	}
	_, err := k.Engine.PlaceOrder(ctx, customer, cart)
	require.Error(t, err)
	assert.True(t, IsValidation(err), "unexpected error %v", err)

	_, err = k.Engine.Quote(ctx, cart)
	assert.True(t, IsValidation(err), "unexpected error %v", err)

	assert.Equal(t, "30", stockOf(t, k, "Vienesa"))
	orders, err := k.History.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestEngine_NotifiesAfterCommit(t *testing.T) {
	rec := &recorder{}
	k, completo, customer := completoKitchen(t, WithObserver(rec))
	rec.stock = nil

	order, err := k.Engine.PlaceOrder(context.Background(), customer, []CartItem{{MenuID: completo, Quantity: 2}})
	require.NoError(t, err)

	require.Len(t, rec.committed, 1)
	assert.Equal(t, order.Reference, rec.committed[0].Reference)
	require.Len(t, rec.stock, 4)
	for _, ing := range rec.stock {
		assert.Equal(t, "28", ing.Stock.String())
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	k, completo, customer := completoKitchen(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := k.Engine.PlaceOrder(ctx, customer, []CartItem{{MenuID: completo, Quantity: 1}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "30", stockOf(t, k, "Vienesa"))
}

func TestEngine_ConcurrentOrdersNeverOversell(t *testing.T) {
	k := newTestKitchen(t)
	ctx := context.Background()
	mustStock(t, k, "Presa de pollo", "10")
	pollo := mustMenu(t, k, "Pollo frito", "2800", line("Presa de pollo", "3"))
	customer := mustCustomer(t, k)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := k.Engine.PlaceOrder(ctx, customer.ID, []CartItem{{MenuID: pollo.ID, Quantity: 1}})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if IsInsufficientStock(err) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, 5, rejected)
	assert.Equal(t, "1", stockOf(t, k, "Presa de pollo"))
}

func TestEngine_Quote(t *testing.T) {
	k, completo, _ := completoKitchen(t)
	ctx := context.Background()

	quote, err := k.Engine.Quote(ctx, []CartItem{{MenuID: completo, Quantity: 31}})
	require.NoError(t, err)
	assert.Equal(t, "55800", quote.Total.String())
	assert.False(t, quote.Feasible)
	assert.Len(t, quote.Demand, 4)
	assert.Len(t, quote.Shortfalls, 4)

	quote, err = k.Engine.Quote(ctx, []CartItem{{MenuID: completo, Quantity: 30}})
	require.NoError(t, err)
	assert.True(t, quote.Feasible)
	assert.Empty(t, quote.Shortfalls)
	assert.Equal(t, "30", stockOf(t, k, "Vienesa"))

	_, err = k.Engine.Quote(ctx, nil)
	assert.True(t, IsValidation(err))
}

func TestEngine_QuoteTakesNoRowLocks(t *testing.T) {
	k, completo, customer := completoKitchen(t)
	ctx := context.Background()

	var locks int
	k.Ledger.forUpdate = func(db *gorm.DB) *gorm.DB {
		locks++
		return db
	}

	_, err := k.Engine.Quote(ctx, []CartItem{{MenuID: completo, Quantity: 2}})
	require.NoError(t, err)
	assert.Zero(t, locks)

	_, err = k.Engine.PlaceOrder(ctx, customer, []CartItem{{MenuID: completo, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, locks)
}
