package api

import (
	"net/http"

	"comanda/internal/events"
	"comanda/internal/kitchen"
	"comanda/internal/monitoring"
	"comanda/internal/reports"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// KitchenAPI represents the main API handler for the kitchen
type KitchenAPI struct {
	Router  *gin.Engine
	Kitchen *kitchen.Kitchen
	Reports *reports.Service
	Hub     *events.Hub
	Monitor *monitoring.Monitor

	logger    *zap.Logger
	jwtSecret string
	taxRate   decimal.Decimal
}

// Options carries the optional collaborators of the API
type Options struct {
	Reports *reports.Service
	// Hub serves the websocket order feed; nil disables /ws/orders
	Hub *events.Hub
	// Monitor records HTTP metrics and backs the /health snapshot. Order and
	// stock counters only move when the same Monitor is also registered on
	// the kitchen with kitchen.WithObserver.
	Monitor *monitoring.Monitor
	Logger  *zap.Logger
	// JWTSecret protects mutating routes; empty disables auth
	JWTSecret string
	// TaxRate is applied to receipts; nil means reports.DefaultTaxRate
	TaxRate *decimal.Decimal
}

// NewKitchenAPI creates a new kitchen API instance
func NewKitchenAPI(k *kitchen.Kitchen, opts Options) *KitchenAPI {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	taxRate := reports.DefaultTaxRate
	if opts.TaxRate != nil {
		taxRate = *opts.TaxRate
	}
	if opts.Reports == nil {
		opts.Reports = reports.NewService(k.History, k.Catalog, opts.Logger.Named("reports"), nil)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(opts.Logger.Named("http"), opts.Monitor), CORSMiddleware())

	api := &KitchenAPI{
		Router:    router,
		Kitchen:   k,
		Reports:   opts.Reports,
		Hub:       opts.Hub,
		Monitor:   opts.Monitor,
		logger:    opts.Logger,
		jwtSecret: opts.JWTSecret,
		taxRate:   taxRate,
	}

	api.setupRoutes()
	return api
}

// setupRoutes configures all API endpoints
func (k *KitchenAPI) setupRoutes() {
	// Health check
	k.Router.GET("/health", func(c *gin.Context) {
		resp := gin.H{"status": "ok", "message": "comanda API is running"}
		if k.Monitor != nil {
			resp["metrics"] = k.Monitor.GetMetrics()
		}
		c.JSON(http.StatusOK, resp)
	})

	if k.Hub != nil {
		k.Router.GET("/ws/orders", k.Hub.ServeWS)
	}

	v1 := k.Router.Group("/api/v1")

	// Reads are public
	{
		v1.GET("/ingredients", k.ListIngredients)

		v1.GET("/menus", k.ListMenus)
		v1.GET("/menus/available", k.AvailableMenus)
		v1.GET("/menus/by-name/:name", k.GetMenuByName)
		v1.GET("/menus/:id", k.GetMenu)

		v1.GET("/customers", k.ListCustomers)
		v1.GET("/customers/:id", k.GetCustomer)
		v1.GET("/customers/:id/orders", k.ListCustomerOrders)

		v1.POST("/orders/quote", k.QuoteOrder)
		v1.GET("/orders", k.ListOrders)
		v1.GET("/orders/by-reference/:ref", k.GetOrderByReference)
		v1.GET("/orders/:id", k.GetOrder)
		v1.GET("/orders/:id/receipt", k.GetReceipt)

		v1.GET("/reports/sales", k.SalesReport)
		v1.GET("/reports/menus", k.MenuReport)
		v1.GET("/reports/ingredients", k.IngredientReport)
	}

	// Writes need a token when a secret is configured
	admin := v1.Group("")
	if k.jwtSecret != "" {
		admin.Use(AuthMiddleware(k.jwtSecret))
	}
	{
		admin.POST("/ingredients", k.AddStock)
		admin.PUT("/ingredients/:id/stock", k.SetStock)
		admin.POST("/ingredients/subtract", k.SubtractStock)
		admin.POST("/ingredients/import", k.ImportStock)
		admin.DELETE("/ingredients/:id", k.RemoveIngredient)

		admin.POST("/menus", k.CreateMenu)
		admin.PUT("/menus/:id", k.UpdateMenu)
		admin.PUT("/menus/:id/recipe", k.ReplaceRecipe)
		admin.DELETE("/menus/:id", k.DeleteMenu)

		admin.POST("/customers", k.CreateCustomer)
		admin.PUT("/customers/:id", k.UpdateCustomer)
		admin.DELETE("/customers/:id", k.DeleteCustomer)

		admin.POST("/orders", k.CreateOrder)
		admin.DELETE("/orders/:id", k.DeleteOrder)
	}
}
