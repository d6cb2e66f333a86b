package kitchen

import (
	"context"
	"fmt"
	"strings"

	"comanda/internal/database"
	"comanda/internal/models"

	"github.com/jinzhu/gorm"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Customers is the registry of buyers. A customer with orders cannot be deleted.
type Customers struct {
	db     *gorm.DB
	logger *zap.Logger
	tracer trace.Tracer
}

func (c *Customers) withTx(tx *gorm.DB) *Customers {
	cp := *c
	cp.db = tx
	return &cp
}

// Create registers a customer. Emails are unique after normalization.
func (c *Customers) Create(ctx context.Context, name, email string) (*models.Customer, error) {
	name, email, err := validateCustomer(name, email)
	if err != nil {
		return nil, err
	}

	customer := models.Customer{Name: name, Email: email}
	err = database.Transact(c.db, func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, email, 0); err != nil {
			return err
		}
		if err := tx.Create(&customer).Error; err != nil {
			return fmt.Errorf("failed to create customer %q: %w", email, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Customer created", zap.Uint("customer_id", customer.ID), zap.String("email", customer.Email))
	return &customer, nil
}

// Get returns a customer by ID
func (c *Customers) Get(ctx context.Context, id uint) (*models.Customer, error) {
	var customer models.Customer
	if err := findCustomer(c.db, id, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetByEmail returns a customer by normalized email
func (c *Customers) GetByEmail(ctx context.Context, email string) (*models.Customer, error) {
	email = NormalizeEmail(email)
	var customer models.Customer
	err := c.db.Where("email = ?", email).First(&customer).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, notFound("customer", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up customer %q: %w", email, err)
	}
	return &customer, nil
}

// List returns every customer in insertion order
func (c *Customers) List(ctx context.Context) ([]models.Customer, error) {
	var list []models.Customer
	if err := c.db.Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return list, nil
}

// Update changes name and email of a customer
func (c *Customers) Update(ctx context.Context, id uint, name, email string) (*models.Customer, error) {
	name, email, err := validateCustomer(name, email)
	if err != nil {
		return nil, err
	}

	var customer models.Customer
	err = database.Transact(c.db, func(tx *gorm.DB) error {
		if err := findCustomer(tx, id, &customer); err != nil {
			return err
		}
		if err := ensureEmailFree(tx, email, customer.ID); err != nil {
			return err
		}
		err := tx.Model(&customer).Updates(map[string]interface{}{"name": name, "email": email}).Error
		if err != nil {
			return fmt.Errorf("failed to update customer %d: %w", id, err)
		}
		customer.Name, customer.Email = name, email
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// Delete removes a customer who has never ordered
func (c *Customers) Delete(ctx context.Context, id uint) error {
	return database.Transact(c.db, func(tx *gorm.DB) error {
		var customer models.Customer
		if err := findCustomer(tx, id, &customer); err != nil {
			return err
		}
		var orders int
		if err := tx.Model(&models.Order{}).Where("customer_id = ?", id).Count(&orders).Error; err != nil {
			return fmt.Errorf("failed to count orders of customer %d: %w", id, err)
		}
		if orders > 0 {
			return conflict("customer", customer.Email, fmt.Sprintf("has %d order(s)", orders))
		}
		if err := tx.Delete(&customer).Error; err != nil {
			return fmt.Errorf("failed to delete customer %d: %w", id, err)
		}
		c.logger.Info("Customer deleted", zap.String("email", customer.Email))
		return nil
	})
}

func validateCustomer(name, email string) (string, string, error) {
	name = NormalizeName(name)
	email = NormalizeEmail(email)
	if name == "" {
		return "", "", invalid("name", "must not be empty")
	}
	if email == "" {
		return "", "", invalid("email", "must not be empty")
	}
	if at := strings.Index(email, "@"); at <= 0 || at == len(email)-1 {
		return "", "", invalid("email", "%q is not an e-mail address", email)
	}
	return name, email, nil
}

func ensureEmailFree(tx *gorm.DB, email string, self uint) error {
	var existing models.Customer
	err := tx.Where("email = ?", email).First(&existing).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up customer %q: %w", email, err)
	}
	if existing.ID == self {
		return nil
	}
	return conflict("customer", email, "email already registered")
}

func findCustomer(db *gorm.DB, id uint, customer *models.Customer) error {
	err := db.First(customer, id).Error
	if gorm.IsRecordNotFoundError(err) {
		return notFound("customer", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load customer %d: %w", id, err)
	}
	return nil
}
