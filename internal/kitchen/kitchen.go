package kitchen

import (
	"time"

	"comanda/internal/database"
	"comanda/internal/models"

	"github.com/jinzhu/gorm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "comanda/kitchen"

// Observer is told about committed changes after their transaction ends.
// Implementations must not block; they run on the caller's goroutine.
type Observer interface {
	OrderCommitted(order *models.Order)
	OrderAborted(outcome Outcome)
	StockChanged(ingredient models.Ingredient)
	IngredientRemoved(ingredient models.Ingredient)
}

// NopObserver ignores every notification. Embed it to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) OrderCommitted(*models.Order) {}

func (NopObserver) OrderAborted(Outcome) {}

func (NopObserver) StockChanged(models.Ingredient) {}

func (NopObserver) IngredientRemoved(models.Ingredient) {}

type observers []Observer

func (o observers) OrderCommitted(order *models.Order) {
	for _, obs := range o {
		obs.OrderCommitted(order)
	}
}

func (o observers) OrderAborted(outcome Outcome) {
	for _, obs := range o {
		obs.OrderAborted(outcome)
	}
}

func (o observers) StockChanged(ingredient models.Ingredient) {
	for _, obs := range o {
		obs.StockChanged(ingredient)
	}
}

func (o observers) IngredientRemoved(ingredient models.Ingredient) {
	for _, obs := range o {
		obs.IngredientRemoved(ingredient)
	}
}

// Option configures a Kitchen
type Option func(*options)

type options struct {
	logger    *zap.Logger
	observers observers
	clock     func() time.Time
	tracer    trace.Tracer
}

// WithLogger sets the logger used by every component
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver registers an observer for stock and order notifications
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithClock overrides the time source used to stamp orders
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// Kitchen bundles the components that share one database handle.
type Kitchen struct {
	Ledger    *Ledger
	Catalog   *Catalog
	History   *History
	Customers *Customers
	Engine    *Engine
}

// New wires the ledger, catalog, history, customer registry and order engine
func New(db *gorm.DB, opts ...Option) *Kitchen {
	o := options{
		logger: zap.NewNop(),
		clock:  time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ledger := &Ledger{
		db:        db,
		logger:    o.logger.Named("ledger"),
		observer:  o.observers,
		tracer:    o.tracer,
		forUpdate: database.ForUpdate,
	}
	catalog := &Catalog{db: db, logger: o.logger.Named("catalog"), tracer: o.tracer}
	history := &History{db: db, logger: o.logger.Named("history"), clock: o.clock, tracer: o.tracer}
	customers := &Customers{db: db, logger: o.logger.Named("customers"), tracer: o.tracer}

	return &Kitchen{
		Ledger:    ledger,
		Catalog:   catalog,
		History:   history,
		Customers: customers,
		Engine: &Engine{
			db:        db,
			ledger:    ledger,
			catalog:   catalog,
			history:   history,
			customers: customers,
			logger:    o.logger.Named("engine"),
			observer:  o.observers,
			tracer:    o.tracer,
		},
	}
}
