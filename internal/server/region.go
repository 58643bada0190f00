package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
)

func (s *Server) ListRegions(c *gin.Context) {
	var req checkoutdomain.ListRegionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	regions, pageInfo, err := s.checkoutRepo.ListRegions(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      regions,
		"page_info": pageInfo,
	})
}
