package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is a single stocked article.
type InventoryItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"type:varchar(100);not null;index"`
	Description string          `json:"description" gorm:"type:varchar(500)"`
	Quantity    int             `json:"quantity" gorm:"not null;default:0"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Category    string          `json:"category" gorm:"type:varchar(50);index"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime:false;not null"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"autoUpdateTime:false;not null"`
}

// StockValue returns quantity × unit price.
func (i InventoryItem) StockValue() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// InventorySummary is the aggregate shown on the dashboard.
type InventorySummary struct {
	TotalValue        decimal.Decimal `json:"total_value"`
	TotalItems        int64           `json:"total_items"`
	TotalQuantity     int64           `json:"total_quantity"`
	LowStockCount     int64           `json:"low_stock_count"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}
