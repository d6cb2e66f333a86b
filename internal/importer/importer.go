// Package importer loads ingredient stock in bulk from CSV files.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"comanda/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Stocker receives one stock addition per imported row
type Stocker interface {
	AddStock(ctx context.Context, name, unit string, amount decimal.Decimal) (*models.Ingredient, error)
}

// RowError describes a skipped row
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result summarises an import
type Result struct {
	Imported int        `json:"imported"`
	Skipped  []RowError `json:"skipped"`
}

var headerAliases = map[string]string{
	"nombre":   "name",
	"name":     "name",
	"cantidad": "quantity",
	"quantity": "quantity",
	"unidad":   "unit",
	"unit":     "unit",
}

type columns struct {
	name, quantity, unit int
}

// Import reads a header row followed by one ingredient per row and adds
// each row's quantity to stock. Bad rows are skipped and reported; only an
// unreadable header, a broken stream or a cancelled context stop the batch.
func Import(ctx context.Context, r io.Reader, s Stocker, logger *zap.Logger) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty import file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	result := &Result{Skipped: []RowError{}}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.skip(logger, parseErr.Line, parseErr.Err.Error())
				continue
			}
			return result, fmt.Errorf("failed to read import file: %w", err)
		}
		if blank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)

		name, unit, amount, reason := cols.parse(record)
		if reason != "" {
			result.skip(logger, line, reason)
			continue
		}

		ing, err := s.AddStock(ctx, name, unit, amount)
		if err != nil {
			result.skip(logger, line, err.Error())
			continue
		}
		result.Imported++
		logger.Debug("Imported stock row",
			zap.Int("line", line),
			zap.String("ingredient", ing.Name),
			zap.String("stock", ing.Stock.String()))
	}

	logger.Info("Stock import finished",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func parseHeader(header []string) (columns, error) {
	cols := columns{name: -1, quantity: -1, unit: -1}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch headerAliases[key] {
		case "name":
			cols.name = i
		case "quantity":
			cols.quantity = i
		case "unit":
			cols.unit = i
		}
	}
	if cols.name < 0 {
		return cols, fmt.Errorf("missing required column nombre/name")
	}
	if cols.quantity < 0 {
		return cols, fmt.Errorf("missing required column cantidad/quantity")
	}
	return cols, nil
}

func (c columns) parse(record []string) (name, unit string, amount decimal.Decimal, reason string) {
	name = field(record, c.name)
	if name == "" {
		return "", "", amount, "missing ingredient name"
	}
	raw := field(record, c.quantity)
	if raw == "" {
		return "", "", amount, "missing quantity"
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return "", "", amount, fmt.Sprintf("invalid quantity %q", raw)
	}
	if c.unit >= 0 {
		unit = field(record, c.unit)
	}
	return name, unit, amount, ""
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func (r *Result) skip(logger *zap.Logger, line int, reason string) {
	r.Skipped = append(r.Skipped, RowError{Line: line, Reason: reason})
	logger.Warn("Skipping import row", zap.Int("line", line), zap.String("reason", reason))
}
