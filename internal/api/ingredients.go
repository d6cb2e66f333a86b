package api

import (
	"io"
	"net/http"
	"strings"

	"comanda/internal/importer"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type stockRequest struct {
	Name   string          `json:"name" binding:"required"`
	Unit   string          `json:"unit"`
	Amount decimal.Decimal `json:"amount"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Inventory management handlers

func (k *KitchenAPI) ListIngredients(c *gin.Context) {
	ingredients, err := k.Kitchen.Ledger.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredients)
}

func (k *KitchenAPI) AddStock(c *gin.Context) {
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ing, err := k.Kitchen.Ledger.AddStock(c.Request.Context(), req.Name, req.Unit, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ing)
}

func (k *KitchenAPI) SetStock(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ing, err := k.Kitchen.Ledger.SetStock(c.Request.Context(), id, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

func (k *KitchenAPI) SubtractStock(c *gin.Context) {
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	done, err := k.Kitchen.Ledger.Subtract(c.Request.Context(), req.Name, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	if !done {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"subtracted": false, "error": "not enough stock"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subtracted": true})
}

func (k *KitchenAPI) RemoveIngredient(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := k.Kitchen.Ledger.Remove(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ingredient removed successfully"})
}

// ImportStock loads a CSV sent either as the raw body or as the "file"
// field of a multipart form.
func (k *KitchenAPI) ImportStock(c *gin.Context) {
	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()
		body = f
	}

	result, err := importer.Import(c.Request.Context(), body, k.Kitchen.Ledger, k.logger.Named("importer"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "result": result})
		return
	}
	if k.Monitor != nil {
		k.Monitor.RecordImport(result.Imported, len(result.Skipped))
	}
	c.JSON(http.StatusOK, result)
}
