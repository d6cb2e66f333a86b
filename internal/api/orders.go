package api

import (
	"net/http"

	"comanda/internal/kitchen"
	"comanda/internal/reports"

	"github.com/gin-gonic/gin"
)

type orderRequest struct {
	CustomerID uint               `json:"customer_id"`
	Items      []kitchen.CartItem `json:"items"`
}

// Order handlers

func (k *KitchenAPI) CreateOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := k.Kitchen.Engine.PlaceOrder(c.Request.Context(), req.CustomerID, req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (k *KitchenAPI) QuoteOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := k.Kitchen.Engine.Quote(c.Request.Context(), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (k *KitchenAPI) ListOrders(c *gin.Context) {
	orders, err := k.Kitchen.History.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (k *KitchenAPI) GetOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	order, err := k.Kitchen.History.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (k *KitchenAPI) GetOrderByReference(c *gin.Context) {
	order, err := k.Kitchen.History.GetByReference(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// DeleteOrder removes an order from the history; stock is not restored
func (k *KitchenAPI) DeleteOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := k.Kitchen.History.DeleteOrder(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted successfully"})
}

func (k *KitchenAPI) GetReceipt(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	order, err := k.Kitchen.History.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports.NewReceipt(order, k.taxRate))
}

// Report handlers

func (k *KitchenAPI) SalesReport(c *gin.Context) {
	period, err := reports.ParsePeriod(c.Query("period"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sales, err := k.Reports.SalesByPeriod(c.Request.Context(), period)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (k *KitchenAPI) MenuReport(c *gin.Context) {
	dist, err := k.Reports.MenuDistribution(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dist)
}

func (k *KitchenAPI) IngredientReport(c *gin.Context) {
	usage, err := k.Reports.IngredientUsage(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}
