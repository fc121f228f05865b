package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"erp/internal/models"
	"erp/internal/repositories"

	"github.com/shopspring/decimal"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
	maxCategoryLength    = 50
)

// maxUnitPrice is the first value that no longer fits decimal(12,2).
var maxUnitPrice = decimal.New(1, 10)

// InventoryOptions holds the limits InventoryService enforces.
type InventoryOptions struct {
	LowStockThreshold int
	DefaultPageSize   int
	MaxPageSize       int
	Exchange          string // broker exchange for events
}

// CreateItemInput carries the fields of a new inventory item.
type CreateItemInput struct {
	Name        string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Category    string
}

// UpdateItemInput is a partial update; nil fields are left unchanged.
type UpdateItemInput struct {
	Name        *string
	Description *string
	Quantity    *int
	UnitPrice   *decimal.Decimal
	Category    *string
}

// ListQuery describes a filtered, sorted page request.
type ListQuery struct {
	Filter repositories.ItemFilter
	SortBy string // empty means "id"
	Order  string // "asc" (default) or "desc"
	Offset int
	Limit  int // <= 0 means the default page size
}

// ListResult is one page of items plus the size of the whole result set.
type ListResult struct {
	Items  []models.InventoryItem
	Total  int64
	Offset int
	Limit  int
}

// InventoryService handles business logic related to inventory items.
type InventoryService struct {
	repo      repositories.ItemRepository
	opts      InventoryOptions
	publisher EventPublisher
	now       func() time.Time
}

// NewInventoryService creates a new InventoryService. publisher may be nil,
// in which case no events are emitted.
func NewInventoryService(repo repositories.ItemRepository, opts InventoryOptions, publisher EventPublisher) *InventoryService {
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = 10
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if opts.DefaultPageSize <= 0 || opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}
	return &InventoryService{
		repo:      repo,
		opts:      opts,
		publisher: publisher,
		now:       time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *InventoryService) SetClock(now func() time.Time) {
	s.now = now
}

// LowStockThreshold returns the quantity below which an item is low on stock.
func (s *InventoryService) LowStockThreshold() int {
	return s.opts.LowStockThreshold
}

// Create validates and stores a new item.
func (s *InventoryService) Create(ctx context.Context, in CreateItemInput) (*models.InventoryItem, error) {
	item := &models.InventoryItem{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		Category:    strings.TrimSpace(in.Category),
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}

	now := s.timestamp()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.publish(ctx, EventItemCreated, item)
	return item, nil
}

// Get returns the item with the given ID.
func (s *InventoryService) Get(ctx context.Context, id uint) (*models.InventoryItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return item, nil
}

// List returns a page of items. The limit is capped at the configured
// maximum page size.
func (s *InventoryService) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	if q.Offset < 0 {
		return nil, validationError("offset must not be negative")
	}
	if q.SortBy != "" && !repositories.IsSortField(q.SortBy) {
		return nil, validationError("sort must be one of %s", strings.Join(repositories.SortFields, ", "))
	}
	var desc bool
	switch strings.ToLower(q.Order) {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return nil, validationError("order must be asc or desc")
	}
	f := q.Filter
	if f.MinQuantity != nil && f.MaxQuantity != nil && *f.MinQuantity > *f.MaxQuantity {
		return nil, validationError("min_quantity must not exceed max_quantity")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, validationError("min_price must not exceed max_price")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.opts.DefaultPageSize
	}
	if limit > s.opts.MaxPageSize {
		limit = s.opts.MaxPageSize
	}

	items, err := s.repo.List(ctx, repositories.ListOptions{
		Filter: f,
		SortBy: q.SortBy,
		Desc:   desc,
		Offset: q.Offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}

	return &ListResult{Items: items, Total: total, Offset: q.Offset, Limit: limit}, nil
}

// Update applies a partial update and advances updated_at.
func (s *InventoryService) Update(ctx context.Context, id uint, patch UpdateItemInput) (*models.InventoryItem, error) {
	item, err := s.repo.Update(ctx, id, func(item *models.InventoryItem) error {
		if patch.Name != nil {
			item.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			item.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Quantity != nil {
			item.Quantity = *patch.Quantity
		}
		if patch.UnitPrice != nil {
			item.UnitPrice = *patch.UnitPrice
		}
		if patch.Category != nil {
			item.Category = strings.TrimSpace(*patch.Category)
		}
		if err := validateItem(item); err != nil {
			return err
		}
		item.UpdatedAt = s.advance(item.UpdatedAt)
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update item %d: %w", id, err)
	}

	s.publish(ctx, EventItemUpdated, item)
	return item, nil
}

// Delete removes the item with the given ID.
func (s *InventoryService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete item %d: %w", id, err)
	}

	s.publish(ctx, EventItemDeleted, &models.InventoryItem{ID: id})
	return nil
}

// Summary computes total value, item count and low-stock count over the
// whole inventory.
func (s *InventoryService) Summary(ctx context.Context) (*models.InventorySummary, error) {
	summary, err := s.repo.Summarize(ctx, s.opts.LowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to compute inventory summary: %w", err)
	}
	return summary, nil
}

// IsLowStock reports whether item is below the low-stock threshold.
func (s *InventoryService) IsLowStock(item models.InventoryItem) bool {
	return item.Quantity < s.opts.LowStockThreshold
}

func validateItem(item *models.InventoryItem) error {
	switch {
	case item.Name == "":
		return validationError("name is required")
	case utf8.RuneCountInString(item.Name) > maxNameLength:
		return validationError("name must be at most %d characters", maxNameLength)
	case utf8.RuneCountInString(item.Description) > maxDescriptionLength:
		return validationError("description must be at most %d characters", maxDescriptionLength)
	case utf8.RuneCountInString(item.Category) > maxCategoryLength:
		return validationError("category must be at most %d characters", maxCategoryLength)
	case item.Quantity < 0:
		return validationError("quantity must not be negative")
	case item.UnitPrice.IsNegative():
		return validationError("unit_price must not be negative")
	case !item.UnitPrice.Equal(item.UnitPrice.Round(2)):
		return validationError("unit_price must have at most 2 decimal places")
	case item.UnitPrice.GreaterThanOrEqual(maxUnitPrice):
		return validationError("unit_price must be less than %s", maxUnitPrice.String())
	}
	return nil
}

// timestamp returns the current time at the millisecond precision every
// supported backend stores.
func (s *InventoryService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// advance returns a timestamp strictly after prev.
func (s *InventoryService) advance(prev time.Time) time.Time {
	next := s.timestamp()
	if !next.After(prev) {
		next = prev.Add(time.Millisecond)
	}
	return next
}

func (s *InventoryService) publish(ctx context.Context, eventType string, item *models.InventoryItem) {
	if s.publisher == nil {
		return
	}

	event := InventoryEvent{
		Type:       eventType,
		ItemID:     item.ID,
		Actor:      ActorFromContext(ctx),
		OccurredAt: s.now().UTC(),
	}
	if eventType != EventItemDeleted {
		quantity, price := item.Quantity, item.UnitPrice
		event.Name = item.Name
		event.Category = item.Category
		event.Quantity = &quantity
		event.UnitPrice = &price
	}
	s.send(event)

	if eventType != EventItemDeleted && s.IsLowStock(*item) {
		event.Type = EventLowStock
		event.Threshold = s.opts.LowStockThreshold
		s.send(event)
	}
}

func (s *InventoryService) send(event InventoryEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal %s event to JSON: %v", event.Type, err)
		return
	}
	if err := s.publisher.Publish(s.opts.Exchange, event.Type, body); err != nil {
		log.Printf("Warning: Failed to publish %s event for item %d: %v", event.Type, event.ItemID, err)
	}
}
