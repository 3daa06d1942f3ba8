package repository

import (
	"context"

	"github.com/timmy/catalogx/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceRepository stores price types and per-product prices.
type PriceRepository struct {
	db *gorm.DB
}

func NewPriceRepository(db *gorm.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// ResolveType looks a price type up by id when given, else by external id.
func (r *PriceRepository) ResolveType(ctx context.Context, companyID, id, externalID string) (*domain.PriceType, error) {
	var pt domain.PriceType
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	key := id
	if id != "" {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("external_id = ?", externalID)
		key = externalID
	}
	if err := q.First(&pt).Error; err != nil {
		return nil, translate(err, "price type", key)
	}
	return &pt, nil
}

// UpsertType creates or renames a price type keyed by (company_id, external_id).
func (r *PriceRepository) UpsertType(ctx context.Context, pt *domain.PriceType) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "currency", "updated_at"}),
	}).Create(pt).Error
	if err != nil {
		return translate(err, "price type", pt.ExternalID)
	}
	stored, err := r.ResolveType(ctx, pt.CompanyID, "", pt.ExternalID)
	if err != nil {
		return err
	}
	*pt = *stored
	return nil
}

// UpsertRecord sets the price of (product, price type), replacing any previous value.
func (r *PriceRepository) UpsertRecord(ctx context.Context, rec *domain.PriceRecord) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "price_type_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "currency", "updated_at"}),
	}).Create(rec).Error
	return translate(err, "price of product", rec.ProductID)
}

// GetRecord returns the stored price of (product, price type).
func (r *PriceRepository) GetRecord(ctx context.Context, productID, priceTypeID string) (*domain.PriceRecord, error) {
	var rec domain.PriceRecord
	err := r.db.WithContext(ctx).First(&rec, "product_id = ? AND price_type_id = ?", productID, priceTypeID).Error
	if err != nil {
		return nil, translate(err, "price of product", productID)
	}
	return &rec, nil
}

// CountRecords counts the price rows of a product.
func (r *PriceRepository) CountRecords(ctx context.Context, productID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.PriceRecord{}).Where("product_id = ?", productID).Count(&count).Error
	return count, translate(err, "prices of product", productID)
}
