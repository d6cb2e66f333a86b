package kitchen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError reports malformed input: empty names, non-positive
// quantities or prices, empty carts, recipe lines naming unknown ingredients.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a reference to an entity that does not exist.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// ConflictError reports a uniqueness violation or an operation blocked
// by dependent records.
type ConflictError struct {
	Entity string
	Key    string
	Reason string
	Err    error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.Key, e.Reason)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// Shortfall describes one ingredient whose stock cannot cover the demand of an order.
type Shortfall struct {
	IngredientID uint            `json:"ingredient_id"`
	Ingredient   string          `json:"ingredient"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
}

// Missing returns how much stock is lacking.
func (s Shortfall) Missing() decimal.Decimal {
	return s.Required.Sub(s.Available)
}

// InsufficientStockError lists every ingredient an order could not get,
// sorted by ingredient name.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s (need %s, have %s)", s.Ingredient, s.Required, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// unresolved rejects a submitted field that references a missing entity.
// The result satisfies both IsValidation and IsNotFound.
func unresolved(field string, err error) error {
	return &ValidationError{Field: field, Reason: err.Error(), Err: err}
}

func notFound(entity string, key interface{}) error {
	return &NotFoundError{Entity: entity, Key: fmt.Sprint(key)}
}

func conflict(entity string, key interface{}, reason string) error {
	return &ConflictError{Entity: entity, Key: fmt.Sprint(key), Reason: reason}
}

// duplicate is a conflict that is also a validation failure of the submitted name.
func duplicate(entity, name string) error {
	return &ConflictError{
		Entity: entity,
		Key:    fmt.Sprintf("%q", name),
		Reason: "name already used",
		Err:    &ValidationError{Field: "name", Reason: fmt.Sprintf("%q already used", name)},
	}
}
