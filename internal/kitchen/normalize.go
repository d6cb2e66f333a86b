package kitchen

import (
	"strings"

	"comanda/internal/models"

	"github.com/shopspring/decimal"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeName trims, collapses inner whitespace and title-cases an
// ingredient, menu or customer name so "  pan de  COMPLETO" and
// "Pan De Completo" refer to the same record.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	return cases.Title(language.Und).String(name)
}

var unitAliases = map[string]models.InventoryUnit{
	"gr":         models.UnitGram,
	"gramo":      models.UnitGram,
	"gramos":     models.UnitGram,
	"kilo":       models.UnitKilogram,
	"kilos":      models.UnitKilogram,
	"kilogramo":  models.UnitKilogram,
	"kilogramos": models.UnitKilogram,
	"cc":         models.UnitMilliliter,
	"mililitro":  models.UnitMilliliter,
	"mililitros": models.UnitMilliliter,
	"lt":         models.UnitLiter,
	"litro":      models.UnitLiter,
	"litros":     models.UnitLiter,
	"u":          models.UnitPiece,
	"un":         models.UnitPiece,
	"unidad":     models.UnitPiece,
	"unidades":   models.UnitPiece,
}

// NormalizeUnit lower-cases a unit of measure and maps common spellings
// ("gramos", "litro", "unidad") onto the canonical InventoryUnit.
// Unknown units are kept as written.
func NormalizeUnit(unit string) string {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if canonical, ok := unitAliases[unit]; ok {
		return string(canonical)
	}
	return unit
}

// NormalizeEmail lower-cases and trims an e-mail address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// decimalPlaces is the scale of every stored quantity and price column
const decimalPlaces = 4

// checkPlaces rejects values the decimal(20,4) columns would silently round
func checkPlaces(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(decimalPlaces)) {
		return invalid(field, "must have at most %d decimal places, got %s", decimalPlaces, d)
	}
	return nil
}
