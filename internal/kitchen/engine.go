package kitchen

import (
	"context"
	"fmt"
	"sort"

	"comanda/internal/database"
	"comanda/internal/models"

	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Outcome is the phase an order attempt ended in
type Outcome string

const (
	OutcomePending           Outcome = "pending"
	OutcomeValidated         Outcome = "validated"
	OutcomeCommitted         Outcome = "committed"
	OutcomeInsufficientStock Outcome = "insufficient_stock"
	OutcomeInvalid           Outcome = "invalid"
	OutcomeFailed            Outcome = "failed"
)

// OutcomeOf classifies the error returned by PlaceOrder
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCommitted
	case IsInsufficientStock(err):
		return OutcomeInsufficientStock
	case IsValidation(err), IsNotFound(err):
		return OutcomeInvalid
	default:
		return OutcomeFailed
	}
}

// DemandLine is the aggregated need for one ingredient
type DemandLine struct {
	IngredientID uint            `json:"ingredient_id"`
	Ingredient   string          `json:"ingredient"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
}

// Quote is a priced, stock-checked cart that has not been committed
type Quote struct {
	Total      decimal.Decimal    `json:"total"`
	Lines      []models.OrderLine `json:"lines"`
	Demand     []DemandLine       `json:"demand"`
	Shortfalls []Shortfall        `json:"shortfalls"`
	Feasible   bool               `json:"feasible"`
}

// Engine turns carts into committed orders. Every order either deducts all
// of its aggregated ingredient demand and is recorded, or changes nothing.
type Engine struct {
	db        *gorm.DB
	ledger    *Ledger
	catalog   *Catalog
	history   *History
	customers *Customers
	logger    *zap.Logger
	observer  Observer
	tracer    trace.Tracer
}

// plan is a validated, priced cart with its aggregated ingredient demand
type plan struct {
	menus      []models.Menu
	quantities []int
	total      decimal.Decimal
	demand     Demand
	names      map[uint]string
}

// PlaceOrder validates the cart, prices it, aggregates ingredient demand
// across all lines and commits only if every ingredient is covered.
func (e *Engine) PlaceOrder(ctx context.Context, customerID uint, items []CartItem) (*models.Order, error) {
	ctx, span := e.tracer.Start(ctx, "engine.place_order", trace.WithAttributes(
		attribute.Int("order.customer_id", int(customerID)),
		attribute.Int("order.cart_lines", len(items)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := e.logger.With(zap.Uint("customer_id", customerID))
	log.Debug("Order received", zap.String("phase", string(OutcomePending)), zap.Int("cart_lines", len(items)))

	var (
		order   *models.Order
		touched []models.Ingredient
	)
	err := database.Transact(e.db, func(tx *gorm.DB) error {
		if _, err := e.customers.withTx(tx).Get(ctx, customerID); err != nil {
			return err
		}
		p, err := e.prepare(ctx, tx, items)
		if err != nil {
			return err
		}
		log.Debug("Order validated",
			zap.String("phase", string(OutcomeValidated)),
			zap.String("total", p.total.String()),
			zap.Int("ingredients", len(p.demand)))

		ledger := e.ledger.withTx(tx)
		stock, err := ledger.lock(p.demand.IDs())
		if err != nil {
			return err
		}
		if shortfalls := p.shortfalls(stock); len(shortfalls) > 0 {
			return &InsufficientStockError{Shortfalls: shortfalls}
		}
		if touched, err = ledger.deduct(stock, p.demand); err != nil {
			return err
		}

		order = &models.Order{CustomerID: customerID, Total: p.total, Lines: p.orderLines()}
		return e.history.withTx(tx).Record(ctx, order)
	})

	outcome := OutcomeOf(err)
	span.SetAttributes(attribute.String("order.outcome", string(outcome)))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.observer.OrderAborted(outcome)
		switch outcome {
		case OutcomeFailed:
			log.Error("Order failed", zap.Error(err))
		default:
			log.Warn("Order rejected", zap.String("phase", string(outcome)), zap.Error(err))
		}
		return nil, err
	}

	log.Info("Order committed",
		zap.String("phase", string(OutcomeCommitted)),
		zap.String("reference", order.Reference),
		zap.String("total", order.Total.String()))
	for _, ing := range touched {
		e.observer.StockChanged(ing)
	}
	e.observer.OrderCommitted(order)
	return order, nil
}

// Quote prices a cart and checks stock without changing anything
func (e *Engine) Quote(ctx context.Context, items []CartItem) (*Quote, error) {
	ctx, span := e.tracer.Start(ctx, "engine.quote")
	defer span.End()

	var quote *Quote
	err := database.Transact(e.db, func(tx *gorm.DB) error {
		p, err := e.prepare(ctx, tx, items)
		if err != nil {
			return err
		}
		stock, err := e.ledger.withTx(tx).snapshot(p.demand.IDs())
		if err != nil {
			return err
		}

		quote = &Quote{Total: p.total, Lines: p.orderLines()}
		for _, id := range p.demand.IDs() {
			quote.Demand = append(quote.Demand, DemandLine{
				IngredientID: id,
				Ingredient:   p.names[id],
				Required:     p.demand[id],
				Available:    stock[id].Stock,
			})
		}
		quote.Shortfalls = p.shortfalls(stock)
		quote.Feasible = len(quote.Shortfalls) == 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// prepare runs validation, pricing and demand aggregation. Nothing is mutated.
func (e *Engine) prepare(ctx context.Context, tx *gorm.DB, items []CartItem) (*plan, error) {
	if len(items) == 0 {
		return nil, invalid("cart", "must not be empty")
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, invalid(fmt.Sprintf("cart[%d].quantity", i), "must be greater than 0, got %d", item.Quantity)
		}
	}
	items, err := coalesce(items)
	if err != nil {
		return nil, err
	}
	// merged lines must still hold a positive quantity
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, invalid(fmt.Sprintf("cart[%d].quantity", i), "must be greater than 0, got %d", item.Quantity)
		}
	}

	catalog := e.catalog.withTx(tx)
	p := &plan{
		total:  decimal.Zero,
		demand: Demand{},
		names:  map[uint]string{},
	}
	for _, item := range items {
		menu, err := catalog.GetByID(ctx, item.MenuID)
		if err != nil {
			return nil, err
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		p.menus = append(p.menus, *menu)
		p.quantities = append(p.quantities, item.Quantity)
		p.total = p.total.Add(menu.Price.Mul(qty))
		for _, line := range menu.Lines {
			p.demand.Add(line.IngredientID, line.Quantity.Mul(qty))
			p.names[line.IngredientID] = line.Ingredient.Name
		}
	}
	return p, nil
}

// shortfalls lists every ingredient whose stock is below demand, sorted by name
func (p *plan) shortfalls(stock map[uint]models.Ingredient) []Shortfall {
	var out []Shortfall
	for _, id := range p.demand.IDs() {
		required := p.demand[id]
		ing, ok := stock[id]
		available := decimal.Zero
		if ok {
			available = ing.Stock
		}
		if available.GreaterThanOrEqual(required) {
			continue
		}
		name := p.names[id]
		if ok {
			name = ing.Name
		}
		out = append(out, Shortfall{
			IngredientID: id,
			Ingredient:   name,
			Required:     required,
			Available:    available,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ingredient < out[j].Ingredient })
	return out
}

// orderLines freezes menu name and unit price for the receipt
func (p *plan) orderLines() []models.OrderLine {
	lines := make([]models.OrderLine, len(p.menus))
	for i, menu := range p.menus {
		qty := p.quantities[i]
		lines[i] = models.OrderLine{
			MenuID:    menu.ID,
			MenuName:  menu.Name,
			UnitPrice: menu.Price,
			Quantity:  qty,
			Subtotal:  menu.Price.Mul(decimal.NewFromInt(int64(qty))),
			Position:  i,
		}
	}
	return lines
}
