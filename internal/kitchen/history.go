package kitchen

import (
	"context"
	"fmt"
	"time"

	"comanda/internal/database"
	"comanda/internal/models"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// History is the append-only record of committed orders.
type History struct {
	db     *gorm.DB
	logger *zap.Logger
	clock  func() time.Time
	tracer trace.Tracer
}

func (h *History) withTx(tx *gorm.DB) *History {
	c := *h
	c.db = tx
	return &c
}

// Record appends an order and its lines. A missing reference or
// timestamp is filled in; an order that already has an ID is rejected.
func (h *History) Record(ctx context.Context, order *models.Order) error {
	if order.ID != 0 {
		return invalid("order", "already recorded as %d", order.ID)
	}
	if len(order.Lines) == 0 {
		return invalid("order", "has no lines")
	}
	if order.Reference == "" {
		order.Reference = uuid.NewString()
	}
	if order.PlacedAt.IsZero() {
		order.PlacedAt = h.clock().UTC()
	}

	return database.Transact(h.db, func(tx *gorm.DB) error {
		lines := order.Lines
		order.Lines = nil
		if err := tx.Create(order).Error; err != nil {
			order.Lines = lines
			return fmt.Errorf("failed to record order %s: %w", order.Reference, err)
		}
		for i := range lines {
			lines[i].OrderID = order.ID
			if err := tx.Create(&lines[i]).Error; err != nil {
				order.Lines = lines
				return fmt.Errorf("failed to record line %d of order %s: %w", i, order.Reference, err)
			}
		}
		order.Lines = lines
		return nil
	})
}

// GetByID returns an order with its lines
func (h *History) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := h.db.First(&order, id).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, notFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", id, err)
	}
	if err := loadOrderLines(h.db, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByReference returns an order by its public reference
func (h *History) GetByReference(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := h.db.Where("reference = ?", ref).First(&order).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, notFound("order", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", ref, err)
	}
	if err := loadOrderLines(h.db, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListAll returns every order, newest first
func (h *History) ListAll(ctx context.Context) ([]models.Order, error) {
	return h.list(h.db)
}

// ListByCustomer returns the orders of one customer, newest first
func (h *History) ListByCustomer(ctx context.Context, customerID uint) ([]models.Order, error) {
	return h.list(h.db.Where("customer_id = ?", customerID))
}

func (h *History) list(scope *gorm.DB) ([]models.Order, error) {
	var orders []models.Order
	if err := scope.Order("placed_at DESC").Order("id DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := loadOrderLines(h.db, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

// DeleteOrder removes an order and its lines. Stock is not restored.
func (h *History) DeleteOrder(ctx context.Context, id uint) error {
	return database.Transact(h.db, func(tx *gorm.DB) error {
		var order models.Order
		err := tx.First(&order, id).Error
		if gorm.IsRecordNotFoundError(err) {
			return notFound("order", id)
		}
		if err != nil {
			return fmt.Errorf("failed to load order %d: %w", id, err)
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderLine{}).Error; err != nil {
			return fmt.Errorf("failed to delete lines of order %d: %w", id, err)
		}
		if err := tx.Delete(&order).Error; err != nil {
			return fmt.Errorf("failed to delete order %d: %w", id, err)
		}
		h.logger.Info("Order deleted", zap.String("reference", order.Reference))
		return nil
	})
}

func loadOrderLines(db *gorm.DB, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uint, len(orders))
	byID := make(map[uint]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Lines = []models.OrderLine{}
	}

	var lines []models.OrderLine
	if err := db.Where("order_id IN (?)", ids).Order("order_id").Order("position").Find(&lines).Error; err != nil {
		return fmt.Errorf("failed to load order lines: %w", err)
	}
	for _, line := range lines {
		if o, ok := byID[line.OrderID]; ok {
			o.Lines = append(o.Lines, line)
		}
	}
	return nil
}
