package kitchen

import (
	"context"
	"fmt"
	"strings"

	"comanda/internal/database"
	"comanda/internal/models"

	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LineInput names one ingredient of a recipe, by ID or by name.
type LineInput struct {
	IngredientID uint            `json:"ingredient_id,omitempty"`
	Ingredient   string          `json:"ingredient,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// MenuInput is the submitted form of a menu
type MenuInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Lines       []LineInput     `json:"lines"`
}

// MenuAvailability reports how many whole servings of a menu current stock can produce
type MenuAvailability struct {
	Menu      models.Menu `json:"menu"`
	Servings  int64       `json:"servings"`
	Unlimited bool        `json:"unlimited"`
	// Name of the ingredient that limits the servings, if any
	LimitedBy string `json:"limited_by,omitempty"`
}

// Catalog owns menus and the recipe lines that link them to ingredients.
type Catalog struct {
	db     *gorm.DB
	logger *zap.Logger
	tracer trace.Tracer
}

func (c *Catalog) withTx(tx *gorm.DB) *Catalog {
	cp := *c
	cp.db = tx
	return &cp
}

// CreateMenu stores a menu and its recipe in one transaction. If any line
// is invalid or names an unknown ingredient, nothing is persisted.
func (c *Catalog) CreateMenu(ctx context.Context, in MenuInput) (*models.Menu, error) {
	_, span := c.tracer.Start(ctx, "catalog.create_menu", trace.WithAttributes(attribute.String("menu.name", in.Name)))
	defer span.End()

	name, err := validateMenuInput(in)
	if err != nil {
		return nil, err
	}

	var menu models.Menu
	err = database.Transact(c.db, func(tx *gorm.DB) error {
		if err := ensureMenuNameFree(tx, name, 0); err != nil {
			return err
		}
		lines, err := resolveLines(tx, in.Lines)
		if err != nil {
			return err
		}
		menu = models.Menu{Name: name, Description: strings.TrimSpace(in.Description), Price: in.Price}
		if err := tx.Create(&menu).Error; err != nil {
			return fmt.Errorf("failed to create menu %q: %w", name, err)
		}
		return insertLines(tx, &menu, lines)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.logger.Info("Menu created",
		zap.Uint("menu_id", menu.ID),
		zap.String("menu", menu.Name),
		zap.Int("lines", len(menu.Lines)))
	return &menu, nil
}

// ReplaceRecipe swaps the whole recipe of a menu. On any failure the old lines remain.
func (c *Catalog) ReplaceRecipe(ctx context.Context, menuID uint, lines []LineInput) (*models.Menu, error) {
	_, span := c.tracer.Start(ctx, "catalog.replace_recipe", trace.WithAttributes(attribute.Int("menu.id", int(menuID))))
	defer span.End()

	var menu models.Menu
	err := database.Transact(c.db, func(tx *gorm.DB) error {
		if err := findMenu(tx, menuID, &menu); err != nil {
			return err
		}
		resolved, err := resolveLines(tx, lines)
		if err != nil {
			return err
		}
		if err := tx.Where("menu_id = ?", menu.ID).Delete(&models.RecipeLine{}).Error; err != nil {
			return fmt.Errorf("failed to clear recipe of %q: %w", menu.Name, err)
		}
		return insertLines(tx, &menu, resolved)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.logger.Info("Recipe replaced", zap.String("menu", menu.Name), zap.Int("lines", len(menu.Lines)))
	return &menu, nil
}

// UpdateMenu edits name, description and price and replaces the recipe, atomically
func (c *Catalog) UpdateMenu(ctx context.Context, menuID uint, in MenuInput) (*models.Menu, error) {
	_, span := c.tracer.Start(ctx, "catalog.update_menu", trace.WithAttributes(attribute.Int("menu.id", int(menuID))))
	defer span.End()

	name, err := validateMenuInput(in)
	if err != nil {
		return nil, err
	}

	var menu models.Menu
	err = database.Transact(c.db, func(tx *gorm.DB) error {
		if err := findMenu(tx, menuID, &menu); err != nil {
			return err
		}
		if err := ensureMenuNameFree(tx, name, menu.ID); err != nil {
			return err
		}
		resolved, err := resolveLines(tx, in.Lines)
		if err != nil {
			return err
		}
		description := strings.TrimSpace(in.Description)
		err = tx.Model(&menu).Updates(map[string]interface{}{
			"name":        name,
			"description": description,
			"price":       in.Price,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update menu %d: %w", menu.ID, err)
		}
		menu.Name, menu.Description, menu.Price = name, description, in.Price

		if err := tx.Where("menu_id = ?", menu.ID).Delete(&models.RecipeLine{}).Error; err != nil {
			return fmt.Errorf("failed to clear recipe of %q: %w", menu.Name, err)
		}
		return insertLines(tx, &menu, resolved)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.logger.Info("Menu updated", zap.Uint("menu_id", menu.ID), zap.String("menu", menu.Name))
	return &menu, nil
}

// DeleteMenu removes a menu and its recipe. Menus already sold cannot be deleted.
func (c *Catalog) DeleteMenu(ctx context.Context, menuID uint) error {
	return database.Transact(c.db, func(tx *gorm.DB) error {
		var menu models.Menu
		if err := findMenu(tx, menuID, &menu); err != nil {
			return err
		}
		var sold int
		if err := tx.Model(&models.OrderLine{}).Where("menu_id = ?", menu.ID).Count(&sold).Error; err != nil {
			return fmt.Errorf("failed to count sales of %q: %w", menu.Name, err)
		}
		if sold > 0 {
			return conflict("menu", menu.Name, fmt.Sprintf("appears in %d order line(s)", sold))
		}
		if err := tx.Where("menu_id = ?", menu.ID).Delete(&models.RecipeLine{}).Error; err != nil {
			return fmt.Errorf("failed to delete recipe of %q: %w", menu.Name, err)
		}
		if err := tx.Delete(&menu).Error; err != nil {
			return fmt.Errorf("failed to delete menu %q: %w", menu.Name, err)
		}
		c.logger.Info("Menu deleted", zap.String("menu", menu.Name))
		return nil
	})
}

// GetByID returns a menu with its recipe
func (c *Catalog) GetByID(ctx context.Context, id uint) (*models.Menu, error) {
	var menu models.Menu
	if err := findMenu(c.db, id, &menu); err != nil {
		return nil, err
	}
	if err := loadRecipes(c.db, []*models.Menu{&menu}); err != nil {
		return nil, err
	}
	return &menu, nil
}

// GetByName returns a menu by its normalized name
func (c *Catalog) GetByName(ctx context.Context, name string) (*models.Menu, error) {
	name = NormalizeName(name)
	var menu models.Menu
	err := c.db.Where("name = ?", name).First(&menu).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, notFound("menu", fmt.Sprintf("%q", name))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up menu %q: %w", name, err)
	}
	if err := loadRecipes(c.db, []*models.Menu{&menu}); err != nil {
		return nil, err
	}
	return &menu, nil
}

// ListAll returns every menu with its recipe, in insertion order
func (c *Catalog) ListAll(ctx context.Context) ([]models.Menu, error) {
	var menus []models.Menu
	if err := c.db.Order("id").Find(&menus).Error; err != nil {
		return nil, fmt.Errorf("failed to list menus: %w", err)
	}
	ptrs := make([]*models.Menu, len(menus))
	for i := range menus {
		ptrs[i] = &menus[i]
	}
	if err := loadRecipes(c.db, ptrs); err != nil {
		return nil, err
	}
	return menus, nil
}

// Availability computes the servings every menu can still produce from current stock
func (c *Catalog) Availability(ctx context.Context) ([]MenuAvailability, error) {
	menus, err := c.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]MenuAvailability, 0, len(menus))
	for _, menu := range menus {
		avail := MenuAvailability{Menu: menu}
		if !menu.HasRecipe() {
			avail.Unlimited = true
			result = append(result, avail)
			continue
		}
		for i, line := range menu.Lines {
			servings := line.Servings(line.Ingredient.Stock)
			if i == 0 || servings < avail.Servings {
				avail.Servings = servings
				avail.LimitedBy = line.Ingredient.Name
			}
		}
		result = append(result, avail)
	}
	return result, nil
}

// Available returns the menus that can be served at least once
func (c *Catalog) Available(ctx context.Context) ([]MenuAvailability, error) {
	all, err := c.Availability(ctx)
	if err != nil {
		return nil, err
	}
	available := make([]MenuAvailability, 0, len(all))
	for _, a := range all {
		if a.Unlimited || a.Servings >= 1 {
			available = append(available, a)
		}
	}
	return available, nil
}

func validateMenuInput(in MenuInput) (string, error) {
	name := NormalizeName(in.Name)
	if name == "" {
		return "", invalid("name", "must not be empty")
	}
	if !in.Price.IsPositive() {
		return "", invalid("price", "must be greater than 0, got %s", in.Price)
	}
	if err := checkPlaces("price", in.Price); err != nil {
		return "", err
	}
	for i, line := range in.Lines {
		if !line.Quantity.IsPositive() {
			return "", invalid(fmt.Sprintf("lines[%d].quantity", i), "must be greater than 0, got %s", line.Quantity)
		}
		if err := checkPlaces(fmt.Sprintf("lines[%d].quantity", i), line.Quantity); err != nil {
			return "", err
		}
		if line.IngredientID == 0 && NormalizeName(line.Ingredient) == "" {
			return "", invalid(fmt.Sprintf("lines[%d].ingredient", i), "must name an ingredient")
		}
	}
	return name, nil
}

func ensureMenuNameFree(tx *gorm.DB, name string, self uint) error {
	var existing models.Menu
	err := tx.Where("name = ?", name).First(&existing).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up menu %q: %w", name, err)
	}
	if existing.ID == self {
		return nil
	}
	return duplicate("menu", name)
}

// resolveLines checks every line against the ledger. Lines are positioned in submission order.
func resolveLines(tx *gorm.DB, in []LineInput) ([]models.RecipeLine, error) {
	lines := make([]models.RecipeLine, 0, len(in))
	seen := make(map[uint]bool, len(in))
	for i, li := range in {
		if !li.Quantity.IsPositive() {
			return nil, invalid(fmt.Sprintf("lines[%d].quantity", i), "must be greater than 0, got %s", li.Quantity)
		}
		if err := checkPlaces(fmt.Sprintf("lines[%d].quantity", i), li.Quantity); err != nil {
			return nil, err
		}

		var ing models.Ingredient
		field := fmt.Sprintf("lines[%d].ingredient", i)
		if li.IngredientID != 0 {
			if err := findIngredient(tx, li.IngredientID, &ing); err != nil {
				if IsNotFound(err) {
					return nil, unresolved(field, err)
				}
				return nil, err
			}
		} else {
			name := NormalizeName(li.Ingredient)
			err := tx.Where("name = ?", name).First(&ing).Error
			if gorm.IsRecordNotFoundError(err) {
				return nil, unresolved(field, notFound("ingredient", fmt.Sprintf("%q", name)))
			}
			if err != nil {
				return nil, fmt.Errorf("failed to look up ingredient %q: %w", name, err)
			}
		}

		if seen[ing.ID] {
			return nil, invalid(field, "%s listed more than once", ing.Name)
		}
		seen[ing.ID] = true
		lines = append(lines, models.RecipeLine{
			IngredientID: ing.ID,
			Quantity:     li.Quantity,
			Position:     i,
			Ingredient:   ing,
		})
	}
	return lines, nil
}

func insertLines(tx *gorm.DB, menu *models.Menu, lines []models.RecipeLine) error {
	menu.Lines = make([]models.RecipeLine, 0, len(lines))
	for _, line := range lines {
		ing := line.Ingredient
		row := models.RecipeLine{
			MenuID:       menu.ID,
			IngredientID: line.IngredientID,
			Quantity:     line.Quantity,
			Position:     line.Position,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to add %q to recipe of %q: %w", ing.Name, menu.Name, err)
		}
		row.Ingredient = ing
		menu.Lines = append(menu.Lines, row)
	}
	return nil
}

func findMenu(db *gorm.DB, id uint, menu *models.Menu) error {
	err := db.First(menu, id).Error
	if gorm.IsRecordNotFoundError(err) {
		return notFound("menu", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load menu %d: %w", id, err)
	}
	return nil
}

// loadRecipes attaches ordered recipe lines, with their ingredients, to menus
func loadRecipes(db *gorm.DB, menus []*models.Menu) error {
	if len(menus) == 0 {
		return nil
	}
	ids := make([]uint, len(menus))
	byID := make(map[uint]*models.Menu, len(menus))
	for i, m := range menus {
		ids[i] = m.ID
		byID[m.ID] = m
		m.Lines = []models.RecipeLine{}
	}

	var lines []models.RecipeLine
	err := db.Preload("Ingredient").
		Where("menu_id IN (?)", ids).
		Order("menu_id").Order("position").
		Find(&lines).Error
	if err != nil {
		return fmt.Errorf("failed to load recipes: %w", err)
	}
	for _, line := range lines {
		if m, ok := byID[line.MenuID]; ok {
			m.Lines = append(m.Lines, line)
		}
	}
	return nil
}
