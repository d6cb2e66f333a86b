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
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Ledger keeps the stock level of every ingredient. Stock never goes negative.
type Ledger struct {
	db       *gorm.DB
	logger   *zap.Logger
	observer Observer
	tracer   trace.Tracer
	// forUpdate row-locks the next query; database.ForUpdate outside tests
	forUpdate func(*gorm.DB) *gorm.DB
}

func (l *Ledger) withTx(tx *gorm.DB) *Ledger {
	c := *l
	c.db = tx
	return &c
}

// AddStock registers a new ingredient or increases the stock of an existing
// one, matched by normalized name. A zero amount registers without stocking.
func (l *Ledger) AddStock(ctx context.Context, name, unit string, amount decimal.Decimal) (*models.Ingredient, error) {
	_, span := l.tracer.Start(ctx, "ledger.add_stock", trace.WithAttributes(attribute.String("ingredient.name", name)))
	defer span.End()

	name = NormalizeName(name)
	if name == "" {
		return nil, invalid("name", "must not be empty")
	}
	if amount.IsNegative() {
		return nil, invalid("amount", "must not be negative, got %s", amount)
	}
	if err := checkPlaces("amount", amount); err != nil {
		return nil, err
	}
	unit = NormalizeUnit(unit)

	var ing models.Ingredient
	err := database.Transact(l.db, func(tx *gorm.DB) error {
		err := l.forUpdate(tx).Where("name = ?", name).First(&ing).Error
		if gorm.IsRecordNotFoundError(err) {
			ing = models.Ingredient{Name: name, Unit: unit, Stock: amount}
			if err := tx.Create(&ing).Error; err != nil {
				return fmt.Errorf("failed to create ingredient %q: %w", name, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up ingredient %q: %w", name, err)
		}

		stock := ing.Stock.Add(amount)
		updates := map[string]interface{}{"stock": stock}
		if ing.Unit == "" && unit != "" {
			updates["unit"] = unit
		}
		if err := tx.Model(&ing).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to restock ingredient %q: %w", name, err)
		}
		ing.Stock = stock
		if ing.Unit == "" {
			ing.Unit = unit
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	l.logger.Info("Stock added",
		zap.String("ingredient", ing.Name),
		zap.String("amount", amount.String()),
		zap.String("stock", ing.Stock.String()))
	l.observer.StockChanged(ing)
	return &ing, nil
}

// SetStock overwrites the stock of an ingredient
func (l *Ledger) SetStock(ctx context.Context, id uint, amount decimal.Decimal) (*models.Ingredient, error) {
	_, span := l.tracer.Start(ctx, "ledger.set_stock")
	defer span.End()

	if amount.IsNegative() {
		return nil, invalid("amount", "must not be negative, got %s", amount)
	}
	if err := checkPlaces("amount", amount); err != nil {
		return nil, err
	}

	var ing models.Ingredient
	err := database.Transact(l.db, func(tx *gorm.DB) error {
		if err := findIngredient(l.forUpdate(tx), id, &ing); err != nil {
			return err
		}
		return tx.Model(&ing).Update("stock", amount).Error
	})
	if err != nil {
		return nil, err
	}

	ing.Stock = amount
	l.logger.Info("Stock set", zap.String("ingredient", ing.Name), zap.String("stock", amount.String()))
	l.observer.StockChanged(ing)
	return &ing, nil
}

// Subtract removes amount from the named ingredient. It reports false,
// leaving stock untouched, when the ingredient is unknown or short.
func (l *Ledger) Subtract(ctx context.Context, name string, amount decimal.Decimal) (bool, error) {
	_, span := l.tracer.Start(ctx, "ledger.subtract", trace.WithAttributes(attribute.String("ingredient.name", name)))
	defer span.End()

	if amount.IsNegative() {
		return false, invalid("amount", "must not be negative, got %s", amount)
	}
	if err := checkPlaces("amount", amount); err != nil {
		return false, err
	}
	name = NormalizeName(name)

	var (
		ing models.Ingredient
		ok  bool
	)
	err := database.Transact(l.db, func(tx *gorm.DB) error {
		err := l.forUpdate(tx).Where("name = ?", name).First(&ing).Error
		if gorm.IsRecordNotFoundError(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up ingredient %q: %w", name, err)
		}
		if !ing.Covers(amount) {
			return nil
		}
		remaining := ing.Stock.Sub(amount)
		if err := tx.Model(&ing).Update("stock", remaining).Error; err != nil {
			return fmt.Errorf("failed to subtract from %q: %w", name, err)
		}
		ing.Stock = remaining
		ok = true
		return nil
	})
	if err != nil || !ok {
		return false, err
	}

	l.observer.StockChanged(ing)
	return true, nil
}

// Remove deletes an ingredient that no recipe uses
func (l *Ledger) Remove(ctx context.Context, id uint) error {
	_, span := l.tracer.Start(ctx, "ledger.remove")
	defer span.End()

	var ing models.Ingredient
	err := database.Transact(l.db, func(tx *gorm.DB) error {
		if err := findIngredient(tx, id, &ing); err != nil {
			return err
		}
		var uses int
		if err := tx.Model(&models.RecipeLine{}).Where("ingredient_id = ?", id).Count(&uses).Error; err != nil {
			return fmt.Errorf("failed to count recipe uses: %w", err)
		}
		if uses > 0 {
			return conflict("ingredient", ing.Name, fmt.Sprintf("used by %d recipe line(s)", uses))
		}
		if err := tx.Delete(&ing).Error; err != nil {
			return fmt.Errorf("failed to delete ingredient %q: %w", ing.Name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("Ingredient removed", zap.String("ingredient", ing.Name))
	l.observer.IngredientRemoved(ing)
	return nil
}

// Get returns an ingredient by ID
func (l *Ledger) Get(ctx context.Context, id uint) (*models.Ingredient, error) {
	var ing models.Ingredient
	if err := findIngredient(l.db, id, &ing); err != nil {
		return nil, err
	}
	return &ing, nil
}

// GetByName returns an ingredient by its normalized name
func (l *Ledger) GetByName(ctx context.Context, name string) (*models.Ingredient, error) {
	name = NormalizeName(name)
	var ing models.Ingredient
	err := l.db.Where("name = ?", name).First(&ing).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, notFound("ingredient", fmt.Sprintf("%q", name))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up ingredient %q: %w", name, err)
	}
	return &ing, nil
}

// List returns every ingredient in insertion order
func (l *Ledger) List(ctx context.Context) ([]models.Ingredient, error) {
	var list []models.Ingredient
	if err := l.db.Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return list, nil
}

// lock loads and, where supported, row-locks the given ingredients
func (l *Ledger) lock(ids []uint) (map[uint]models.Ingredient, error) {
	return l.load(l.forUpdate(l.db), ids)
}

// snapshot loads the given ingredients without taking row locks
func (l *Ledger) snapshot(ids []uint) (map[uint]models.Ingredient, error) {
	return l.load(l.db, ids)
}

func (l *Ledger) load(db *gorm.DB, ids []uint) (map[uint]models.Ingredient, error) {
	stock := make(map[uint]models.Ingredient, len(ids))
	if len(ids) == 0 {
		return stock, nil
	}
	var list []models.Ingredient
	if err := db.Where("id IN (?)", ids).Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to load ingredients: %w", err)
	}
	for _, ing := range list {
		stock[ing.ID] = ing
	}
	return stock, nil
}

// deduct applies a demand that has already been checked against stock
func (l *Ledger) deduct(stock map[uint]models.Ingredient, demand Demand) ([]models.Ingredient, error) {
	ids := demand.IDs()
	updated := make([]models.Ingredient, 0, len(ids))
	for _, id := range ids {
		ing, ok := stock[id]
		if !ok {
			return nil, notFound("ingredient", id)
		}
		remaining := ing.Stock.Sub(demand[id])
		if remaining.IsNegative() {
			return nil, fmt.Errorf("stock of %q would drop to %s", ing.Name, remaining)
		}
		if err := l.db.Model(&ing).Update("stock", remaining).Error; err != nil {
			return nil, fmt.Errorf("failed to deduct %q: %w", ing.Name, err)
		}
		ing.Stock = remaining
		updated = append(updated, ing)
	}
	return updated, nil
}

func findIngredient(db *gorm.DB, id uint, ing *models.Ingredient) error {
	err := db.First(ing, id).Error
	if gorm.IsRecordNotFoundError(err) {
		return notFound("ingredient", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load ingredient %d: %w", id, err)
	}
	return nil
}

// Demand maps ingredient IDs to the total quantity an order consumes.
type Demand map[uint]decimal.Decimal

// Add accumulates qty for an ingredient
func (d Demand) Add(id uint, qty decimal.Decimal) {
	d[id] = d[id].Add(qty)
}

// IDs returns the ingredient IDs in ascending order
func (d Demand) IDs() []uint {
	ids := make([]uint, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
