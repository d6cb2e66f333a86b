package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type customerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Customer handlers

func (k *KitchenAPI) ListCustomers(c *gin.Context) {
	customers, err := k.Kitchen.Customers.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (k *KitchenAPI) GetCustomer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	customer, err := k.Kitchen.Customers.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (k *KitchenAPI) CreateCustomer(c *gin.Context) {
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customer, err := k.Kitchen.Customers.Create(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (k *KitchenAPI) UpdateCustomer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	customer, err := k.Kitchen.Customers.Update(c.Request.Context(), id, req.Name, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (k *KitchenAPI) DeleteCustomer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := k.Kitchen.Customers.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted successfully"})
}

func (k *KitchenAPI) ListCustomerOrders(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := k.Kitchen.Customers.Get(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	orders, err := k.Kitchen.History.ListByCustomer(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
