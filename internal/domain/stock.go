package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is a company-scoped warehouse declared by offer documents.
type Stock struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	CompanyID  string    `gorm:"type:text;not null;uniqueIndex:idx_stocks_company_external,priority:1" json:"companyId"`
	ExternalID string    `gorm:"type:text;not null;uniqueIndex:idx_stocks_company_external,priority:2" json:"externalId"`
	Name       string    `gorm:"type:text;not null" json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Stock) TableName() string {
	return "stocks"
}

// StockBalance is the quantity of a product held in one stock.
type StockBalance struct {
	ID        string          `gorm:"type:text;primaryKey" json:"id"`
	ProductID string          `gorm:"type:text;not null;uniqueIndex:idx_stock_balances_product_stock,priority:1" json:"productId"`
	StockID   string          `gorm:"type:text;not null;uniqueIndex:idx_stock_balances_product_stock,priority:2" json:"stockId"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (StockBalance) TableName() string {
	return "stock_balances"
}
