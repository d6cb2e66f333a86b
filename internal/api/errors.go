package api

import (
	"errors"
	"net/http"
	"strconv"

	"comanda/internal/kitchen"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors to HTTP statuses. Conflicts are checked
// before validation because a duplicate name is both.
func respondError(c *gin.Context, err error) {
	var stockErr *kitchen.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      err.Error(),
			"shortfalls": stockErr.Shortfalls,
		})
	case kitchen.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case kitchen.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case kitchen.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// idParam parses the :id path parameter, answering 400 when it is malformed
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id " + strconv.Quote(c.Param("id"))})
		return 0, false
	}
	return uint(id), true
}
