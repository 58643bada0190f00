package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
)

type orderTotalsResponse struct {
	totalsResponse

	PaidTotal     int64 `json:"paid_total"`
	RefundedTotal int64 `json:"refunded_total"`
	RefundableAmt int64 `json:"refundable_amount"`
	SwapTotal     int64 `json:"swap_total"`
}

func (s *Server) GetOrderTotals(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid order id"))
		return
	}

	order, err := s.checkoutRepo.GetOrder(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if order == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	breakdown, err := s.buildTotals(c.Request.Context(), order, false)
	if err != nil {
		s.engineMetrics.RecordFailure("order")
		AbortWithError(c, err)
		return
	}
	s.engineMetrics.RecordComputation("order")

	paid := s.totalsSvc.GetPaidTotal(order)
	refunded := s.totalsSvc.GetRefundedTotal(order)

	c.JSON(http.StatusOK, gin.H{"data": orderTotalsResponse{
		totalsResponse: breakdown,
		PaidTotal:      paid,
		RefundedTotal:  refunded,
		RefundableAmt:  paid - refunded,
		SwapTotal:      s.totalsSvc.GetSwapTotal(order),
	}})
}

type previewRefundRequest struct {
	LineItemIDs []string `json:"line_item_ids"`
}

func (s *Server) PreviewRefund(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid order id"))
		return
	}

	var req previewRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.LineItemIDs) == 0 {
		AbortWithError(c, newValidationError("line_item_ids", "invalid_line_item_ids", "at least one line item id is required"))
		return
	}

	order, err := s.checkoutRepo.GetOrder(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if order == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	items := make([]checkoutdomain.LineItem, 0, len(req.LineItemIDs))
	for _, raw := range req.LineItemIDs {
		itemID, err := parseID(raw)
		if err != nil {
			AbortWithError(c, newValidationError("line_item_ids", "invalid_id", "invalid line item id"))
			return
		}
		items = append(items, resolveOrderItem(order, itemID))
	}

	refundTotal, err := s.totalsSvc.GetRefundTotal(order, items)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"refund_total": refundTotal}})
}

// resolveOrderItem returns the order's copy of the item so refunds are
// priced from stored state. Unknown ids pass through as bare items and
// are rejected by the refund computation.
func resolveOrderItem(order *checkoutdomain.Order, id snowflake.ID) checkoutdomain.LineItem {
	for _, item := range order.Items {
		if item.ID == id {
			return item
		}
	}
	for _, item := range order.GetAdditionalItems() {
		if item.ID == id {
			return item
		}
	}
	return checkoutdomain.LineItem{ID: id}
}
