package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"erp/internal/models"

	"github.com/shopspring/decimal"
)

// MemoryItemRepository is an in-memory implementation of ItemRepository.
type MemoryItemRepository struct {
	items  map[uint]models.InventoryItem
	nextID uint
	mu     sync.RWMutex
}

// NewMemoryItemRepository creates a new instance of MemoryItemRepository.
func NewMemoryItemRepository() *MemoryItemRepository {
	return &MemoryItemRepository{
		items: make(map[uint]models.InventoryItem),
	}
}

// Create stores a copy of item under the next sequential ID.
func (r *MemoryItemRepository) Create(_ context.Context, item *models.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = *item
	return nil
}

// GetByID returns an item by its ID.
func (r *MemoryItemRepository) GetByID(_ context.Context, id uint) (*models.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

// List returns one page of items matching opts.Filter.
func (r *MemoryItemRepository) List(_ context.Context, opts ListOptions) ([]models.InventoryItem, error) {
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = "id"
	}
	if !IsSortField(sortBy) {
		return nil, fmt.Errorf("unsupported sort field %q", sortBy)
	}

	r.mu.RLock()
	matched := make([]models.InventoryItem, 0, len(r.items))
	for _, item := range r.items {
		if opts.Filter.Matches(item) {
			matched = append(matched, item)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		c := compareItems(matched[i], matched[j], sortBy)
		if opts.Desc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return matched[i].ID < matched[j].ID
	})

	if opts.Offset >= len(matched) {
		return []models.InventoryItem{}, nil
	}
	if opts.Offset > 0 {
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

// Count returns the number of items matching filter.
func (r *MemoryItemRepository) Count(_ context.Context, filter ItemFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, item := range r.items {
		if filter.Matches(item) {
			n++
		}
	}
	return n, nil
}

// Update applies a mutation to a copy of the item under the write lock and
// stores it only when apply succeeds.
func (r *MemoryItemRepository) Update(_ context.Context, id uint, apply func(item *models.InventoryItem) error) (*models.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := apply(&item); err != nil {
		return nil, err
	}
	item.ID = id
	r.items[id] = item
	return &item, nil
}

// Delete removes an item by its ID.
func (r *MemoryItemRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// Summarize computes the dashboard aggregate under the read lock.
func (r *MemoryItemRepository) Summarize(_ context.Context, lowStockThreshold int) (*models.InventorySummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := &models.InventorySummary{
		TotalValue:        decimal.Zero,
		LowStockThreshold: lowStockThreshold,
	}
	for _, item := range r.items {
		accumulate(summary, item, lowStockThreshold)
	}
	return summary, nil
}

func compareItems(a, b models.InventoryItem, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "category":
		return strings.Compare(a.Category, b.Category)
	case "quantity":
		return a.Quantity - b.Quantity
	case "unit_price":
		return a.UnitPrice.Cmp(b.UnitPrice)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	}
}
