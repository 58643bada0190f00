package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetCartTotals(c *gin.Context) {
	var query struct {
		ForceTaxes bool `form:"force_taxes"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid cart id"))
		return
	}

	cart, err := s.checkoutRepo.GetCart(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if cart == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	resp, err := s.buildTotals(c.Request.Context(), cart, query.ForceTaxes)
	if err != nil {
		s.engineMetrics.RecordFailure("cart")
		AbortWithError(c, err)
		return
	}
	s.engineMetrics.RecordComputation("cart")

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
