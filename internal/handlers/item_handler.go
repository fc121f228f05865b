package handlers

import (
	"log"
	"strconv"
	"time"

	"erp/internal/models"
	"erp/internal/repositories"
	"erp/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// HeaderTotalCount carries the size of the whole filtered result set.
const HeaderTotalCount = "X-Total-Count"

// ItemHandler handles HTTP requests for inventory items.
type ItemHandler struct {
	service  *services.InventoryService
	validate *validator.Validate
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(service *services.InventoryService, validate *validator.Validate) *ItemHandler {
	return &ItemHandler{
		service:  service,
		validate: validate,
	}
}

// RegisterRoutes registers the item routes behind guard.
func (h *ItemHandler) RegisterRoutes(router fiber.Router, guard fiber.Handler) {
	itemRoutes := router.Group("/items", guard)
	itemRoutes.Get("/", h.HandleListItems)
	itemRoutes.Post("/", h.HandleCreateItem)
	itemRoutes.Get("/:id", h.HandleGetItem)
	itemRoutes.Put("/:id", h.HandleUpdateItem)
	itemRoutes.Delete("/:id", h.HandleDeleteItem)
}

// CreateItemRequest represents the request body for creating an item.
// unit_price may be sent as a JSON number or string.
type CreateItemRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	Description string           `json:"description" validate:"max=500"`
	Quantity    *int             `json:"quantity" validate:"required,gte=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price" validate:"required,gte=0"`
	Category    string           `json:"category" validate:"max=50"`
}

// UpdateItemRequest represents a partial update; absent fields are kept.
type UpdateItemRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	Quantity    *int             `json:"quantity" validate:"omitempty,gte=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0"`
	Category    *string          `json:"category" validate:"omitempty,max=50"`
}

// ListItemsQuery holds the query parameters of GET /items.
type ListItemsQuery struct {
	Name        string `query:"name" validate:"max=100"`
	Category    string `query:"category" validate:"max=50"`
	MinQuantity *int   `query:"min_quantity" validate:"omitempty,gte=0"`
	MaxQuantity *int   `query:"max_quantity" validate:"omitempty,gte=0"`
	MinPrice    string `query:"min_price"`
	MaxPrice    string `query:"max_price"`
	LowStock    bool   `query:"low_stock"`
	Sort        string `query:"sort"`
	Order       string `query:"order"`
	Offset      int    `query:"offset" validate:"gte=0"`
	Limit       int    `query:"limit" validate:"gte=0"`
}

// ItemResponse is the JSON form of an inventory item. Money is rendered with
// two decimals.
type ItemResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Category    string    `json:"category"`
	LowStock    bool      `json:"low_stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (h *ItemHandler) toResponse(item models.InventoryItem) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice.StringFixed(2),
		Category:    item.Category,
		LowStock:    h.service.IsLowStock(item),
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

// HandleListItems returns one page of items matching the query filters.
func (h *ItemHandler) HandleListItems(c *fiber.Ctx) error {
	var q ListItemsQuery
	if err := c.QueryParser(&q); err != nil {
		log.Printf("Error parsing item list query: %v", err)
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}
	if err := h.validate.Struct(q); err != nil {
		return err
	}

	filter := repositories.ItemFilter{
		Name:        q.Name,
		Category:    q.Category,
		MinQuantity: q.MinQuantity,
		MaxQuantity: q.MaxQuantity,
	}
	var err error
	if filter.MinPrice, err = parsePrice(q.MinPrice, "min_price"); err != nil {
		return err
	}
	if filter.MaxPrice, err = parsePrice(q.MaxPrice, "max_price"); err != nil {
		return err
	}
	if q.LowStock {
		threshold := h.service.LowStockThreshold()
		filter.BelowQuantity = &threshold
	}

	page, err := h.service.List(c.UserContext(), services.ListQuery{
		Filter: filter,
		SortBy: q.Sort,
		Order:  q.Order,
		Offset: q.Offset,
		Limit:  q.Limit,
	})
	if err != nil {
		return err
	}

	items := make([]ItemResponse, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, h.toResponse(item))
	}
	c.Set(HeaderTotalCount, strconv.FormatInt(page.Total, 10))
	return c.JSON(items)
}

// HandleGetItem retrieves a single item by its ID.
func (h *ItemHandler) HandleGetItem(c *fiber.Ctx) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	item, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(h.toResponse(*item))
}

// HandleCreateItem creates a new item.
func (h *ItemHandler) HandleCreateItem(c *fiber.Ctx) error {
	var req CreateItemRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create item request body: %v", err)
		return errInvalidBody
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	item, err := h.service.Create(c.UserContext(), services.CreateItemInput{
		Name:        req.Name,
		Description: req.Description,
		Quantity:    *req.Quantity,
		UnitPrice:   *req.UnitPrice,
		Category:    req.Category,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(h.toResponse(*item))
}

// HandleUpdateItem applies a partial update to an item.
func (h *ItemHandler) HandleUpdateItem(c *fiber.Ctx) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}

	var req UpdateItemRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing update item request body: %v", err)
		return errInvalidBody
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}

	item, err := h.service.Update(c.UserContext(), id, services.UpdateItemInput{
		Name:        req.Name,
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		Category:    req.Category,
	})
	if err != nil {
		return err
	}
	return c.JSON(h.toResponse(*item))
}

// HandleDeleteItem removes an item.
func (h *ItemHandler) HandleDeleteItem(c *fiber.Ctx) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func itemID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 0)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid item ID")
	}
	return uint(id), nil
}

func parsePrice(raw, field string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+field)
	}
	return &d, nil
}
