package repositories

import (
	"context"
	"errors"
	"strings"

	"erp/internal/models"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// ItemFilter narrows an inventory query. Zero values mean "no constraint".
type ItemFilter struct {
	Name          string // case-insensitive substring
	Category      string // exact match
	MinQuantity   *int
	MaxQuantity   *int
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	BelowQuantity *int // quantity < BelowQuantity
}

// Matches reports whether item satisfies every constraint of f.
func (f ItemFilter) Matches(item models.InventoryItem) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.MinQuantity != nil && item.Quantity < *f.MinQuantity {
		return false
	}
	if f.MaxQuantity != nil && item.Quantity > *f.MaxQuantity {
		return false
	}
	if f.MinPrice != nil && item.UnitPrice.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && item.UnitPrice.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.BelowQuantity != nil && item.Quantity >= *f.BelowQuantity {
		return false
	}
	return true
}

// ListOptions combines a filter with ordering and a page window.
type ListOptions struct {
	Filter ItemFilter
	SortBy string // one of SortFields; empty means "id"
	Desc   bool
	Offset int
	Limit  int
}

// SortFields lists the columns an inventory listing may be ordered by.
var SortFields = []string{"id", "name", "quantity", "unit_price", "category", "created_at", "updated_at"}

// IsSortField reports whether field is an accepted SortBy value.
func IsSortField(field string) bool {
	for _, f := range SortFields {
		if f == field {
			return true
		}
	}
	return false
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// ItemRepository defines the interface for inventory data access.
type ItemRepository interface {
	Create(ctx context.Context, item *models.InventoryItem) error
	GetByID(ctx context.Context, id uint) (*models.InventoryItem, error)
	List(ctx context.Context, opts ListOptions) ([]models.InventoryItem, error)
	Count(ctx context.Context, filter ItemFilter) (int64, error)
	// Update loads the item, lets apply mutate it and persists the result
	// atomically. An error from apply aborts the write and is returned as is.
	Update(ctx context.Context, id uint, apply func(item *models.InventoryItem) error) (*models.InventoryItem, error)
	Delete(ctx context.Context, id uint) error
	// Summarize computes the dashboard aggregate in a single pass.
	Summarize(ctx context.Context, lowStockThreshold int) (*models.InventorySummary, error)
}
