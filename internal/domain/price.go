package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceType is a company-scoped price list declared by price documents.
type PriceType struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	CompanyID  string    `gorm:"type:text;not null;uniqueIndex:idx_price_types_company_external,priority:1" json:"companyId"`
	ExternalID string    `gorm:"type:text;not null;uniqueIndex:idx_price_types_company_external,priority:2" json:"externalId"`
	Name       string    `gorm:"type:text;not null" json:"name"`
	Currency   string    `gorm:"type:text" json:"currency,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (PriceType) TableName() string {
	return "price_types"
}

// PriceRecord holds the current price of a product in one price type.
// There is at most one row per (product, price type).
type PriceRecord struct {
	ID          string          `gorm:"type:text;primaryKey" json:"id"`
	ProductID   string          `gorm:"type:text;not null;uniqueIndex:idx_price_records_product_type,priority:1" json:"productId"`
	PriceTypeID string          `gorm:"type:text;not null;uniqueIndex:idx_price_records_product_type,priority:2" json:"priceTypeId"`
	Price       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	Currency    string          `gorm:"type:text" json:"currency,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (PriceRecord) TableName() string {
	return "price_records"
}
