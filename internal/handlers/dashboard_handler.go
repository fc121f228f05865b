package handlers

import (
	"erp/internal/services"

	"github.com/gofiber/fiber/v2"
)

// DashboardHandler serves the inventory summary.
type DashboardHandler struct {
	service *services.InventoryService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(service *services.InventoryService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// RegisterRoutes registers the dashboard routes behind guard.
func (h *DashboardHandler) RegisterRoutes(router fiber.Router, guard fiber.Handler) {
	dashboardRoutes := router.Group("/dashboard", guard)
	dashboardRoutes.Get("/summary", h.HandleSummary)
}

// SummaryResponse is the JSON form of the inventory summary.
type SummaryResponse struct {
	TotalValue        string `json:"total_value"`
	TotalItems        int64  `json:"total_items"`
	TotalQuantity     int64  `json:"total_quantity"`
	LowStockCount     int64  `json:"low_stock_count"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// HandleSummary returns the total stock value and low-stock count.
func (h *DashboardHandler) HandleSummary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(SummaryResponse{
		TotalValue:        summary.TotalValue.StringFixed(2),
		TotalItems:        summary.TotalItems,
		TotalQuantity:     summary.TotalQuantity,
		LowStockCount:     summary.LowStockCount,
		LowStockThreshold: summary.LowStockThreshold,
	})
}
