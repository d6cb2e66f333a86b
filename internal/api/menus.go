package api

import (
	"net/http"

	"comanda/internal/kitchen"

	"github.com/gin-gonic/gin"
)

type recipeRequest struct {
	Lines []kitchen.LineInput `json:"lines"`
}

// Menu catalog handlers

func (k *KitchenAPI) ListMenus(c *gin.Context) {
	menus, err := k.Kitchen.Catalog.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, menus)
}

// AvailableMenus lists menus current stock can serve. ?all=true includes
// the ones that cannot be served.
func (k *KitchenAPI) AvailableMenus(c *gin.Context) {
	get := k.Kitchen.Catalog.Available
	if c.Query("all") == "true" {
		get = k.Kitchen.Catalog.Availability
	}
	avail, err := get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, avail)
}

func (k *KitchenAPI) GetMenu(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	menu, err := k.Kitchen.Catalog.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (k *KitchenAPI) GetMenuByName(c *gin.Context) {
	menu, err := k.Kitchen.Catalog.GetByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (k *KitchenAPI) CreateMenu(c *gin.Context) {
	var in kitchen.MenuInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	menu, err := k.Kitchen.Catalog.CreateMenu(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, menu)
}

func (k *KitchenAPI) UpdateMenu(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in kitchen.MenuInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	menu, err := k.Kitchen.Catalog.UpdateMenu(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (k *KitchenAPI) ReplaceRecipe(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	menu, err := k.Kitchen.Catalog.ReplaceRecipe(c.Request.Context(), id, req.Lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (k *KitchenAPI) DeleteMenu(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := k.Kitchen.Catalog.DeleteMenu(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu deleted successfully"})
}
