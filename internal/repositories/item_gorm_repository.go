package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"erp/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const summaryBatchSize = 500

// GORMItemRepository is a GORM implementation of ItemRepository.
type GORMItemRepository struct {
	db *gorm.DB
}

// NewGORMItemRepository creates a new instance of GORMItemRepository.
func NewGORMItemRepository(db *gorm.DB) *GORMItemRepository {
	return &GORMItemRepository{
		db: db,
	}
}

// Create inserts a new inventory item and fills in its ID.
func (r *GORMItemRepository) Create(ctx context.Context, item *models.InventoryItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// GetByID retrieves a single item by its ID.
func (r *GORMItemRepository) GetByID(ctx context.Context, id uint) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return &item, nil
}

// List returns one page of items matching opts.Filter.
func (r *GORMItemRepository) List(ctx context.Context, opts ListOptions) ([]models.InventoryItem, error) {
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = "id"
	}
	if !IsSortField(sortBy) {
		return nil, fmt.Errorf("unsupported sort field %q", sortBy)
	}

	q := r.filtered(ctx, opts.Filter).
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortBy}, Desc: opts.Desc})
	if sortBy != "id" {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	items := make([]models.InventoryItem, 0)
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// Count returns the number of items matching filter, ignoring pagination.
func (r *GORMItemRepository) Count(ctx context.Context, filter ItemFilter) (int64, error) {
	var n int64
	if err := r.filtered(ctx, filter).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

// Update runs a read-modify-write of one item inside a transaction.
func (r *GORMItemRepository) Update(ctx context.Context, id uint, apply func(item *models.InventoryItem) error) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load item %d: %w", id, err)
		}
		if err := apply(&item); err != nil {
			return err
		}
		res := tx.Model(&item).Select("*").Updates(&item)
		if res.Error != nil {
			return fmt.Errorf("failed to update item %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes an item by its ID.
func (r *GORMItemRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.InventoryItem{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Summarize scans every item once inside a transaction. Values are summed
// in decimal rather than in SQL.
func (r *GORMItemRepository) Summarize(ctx context.Context, lowStockThreshold int) (*models.InventorySummary, error) {
	summary := &models.InventorySummary{
		TotalValue:        decimal.Zero,
		LowStockThreshold: lowStockThreshold,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch []models.InventoryItem
		return tx.Model(&models.InventoryItem{}).
			Select("id", "quantity", "unit_price").
			FindInBatches(&batch, summaryBatchSize, func(_ *gorm.DB, _ int) error {
				for _, item := range batch {
					accumulate(summary, item, lowStockThreshold)
				}
				return nil
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize inventory: %w", err)
	}
	return summary, nil
}

func (r *GORMItemRepository) filtered(ctx context.Context, f ItemFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.InventoryItem{})
	if f.Name != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(f.Name))+"%")
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.MinQuantity != nil {
		q = q.Where("quantity >= ?", *f.MinQuantity)
	}
	if f.MaxQuantity != nil {
		q = q.Where("quantity <= ?", *f.MaxQuantity)
	}
	if f.MinPrice != nil {
		q = q.Where("unit_price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("unit_price <= ?", *f.MaxPrice)
	}
	if f.BelowQuantity != nil {
		q = q.Where("quantity < ?", *f.BelowQuantity)
	}
	return q
}

// '!' is the LIKE escape character on every supported backend.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func accumulate(summary *models.InventorySummary, item models.InventoryItem, lowStockThreshold int) {
	summary.TotalItems++
	summary.TotalQuantity += int64(item.Quantity)
	summary.TotalValue = summary.TotalValue.Add(item.StockValue())
	if item.Quantity < lowStockThreshold {
		summary.LowStockCount++
	}
}
