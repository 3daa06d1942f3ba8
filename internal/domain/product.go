package domain

import "time"

// Product is a catalog item owned by a company. ExternalID is the natural key
// supplied by the exchanging system and is unique per company when present.
type Product struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	CompanyID   string    `gorm:"type:text;not null;uniqueIndex:idx_products_company_external,priority:1" json:"companyId"`
	ExternalID  *string   `gorm:"type:text;uniqueIndex:idx_products_company_external,priority:2" json:"externalId,omitempty"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Number      string    `gorm:"type:text" json:"number,omitempty"`
	Brand       string    `gorm:"type:text" json:"brand,omitempty"`
	BrandNumber string    `gorm:"type:text" json:"brandNumber,omitempty"`
	Unit        string    `gorm:"type:text" json:"unit,omitempty"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Archive     bool      `gorm:"not null;default:false" json:"archive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string {
	return "products"
}
