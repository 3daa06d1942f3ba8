package repository

import (
	"context"
	"time"

	"github.com/timmy/catalogx/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var productUpdateColumns = []string{
	"name", "number", "brand", "brand_number", "unit", "description", "archive", "updated_at",
}

// ProductRepository handles product data operations.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new ProductRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ProductRepository: repository instance bound to db.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID retrieves a company's product by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - companyID: owning company.
//   - id: product ID.
// Returns:
//   - *domain.Product: product record if found.
//   - error: domain NotFound if the company has no such product.
func (r *ProductRepository) GetByID(ctx context.Context, companyID, id string) (*domain.Product, error) {
	var product domain.Product
	if err := r.db.WithContext(ctx).First(&product, "company_id = ? AND id = ?", companyID, id).Error; err != nil {
		return nil, translate(err, "product", id)
	}
	return &product, nil
}

// GetByExternalID retrieves a company's product by its natural key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - companyID: owning company.
//   - externalID: key assigned by the exchanging system.
// Returns:
//   - *domain.Product: product record if found.
//   - error: domain NotFound if the company has no such product.
func (r *ProductRepository) GetByExternalID(ctx context.Context, companyID, externalID string) (*domain.Product, error) {
	var product domain.Product
	if err := r.db.WithContext(ctx).First(&product, "company_id = ? AND external_id = ?", companyID, externalID).Error; err != nil {
		return nil, translate(err, "product with external id", externalID)
	}
	return &product, nil
}

// Resolve looks a product up by id when given, else by external id.
func (r *ProductRepository) Resolve(ctx context.Context, companyID, id, externalID string) (*domain.Product, error) {
	if id != "" {
		return r.GetByID(ctx, companyID, id)
	}
	return r.GetByExternalID(ctx, companyID, externalID)
}

// UpsertByExternalID creates or updates a product keyed by (company_id, external_id)
// and reloads it so that product.ID is the stored row's ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - product: record with ExternalID set; a fresh ID is used only on insert.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *ProductRepository) UpsertByExternalID(ctx context.Context, product *domain.Product) error {
	if product.ExternalID == nil {
		return domain.NewValidationError("product has no external id")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(productUpdateColumns),
	}).Create(product).Error
	if err != nil {
		return translate(err, "product with external id", *product.ExternalID)
	}

	stored, err := r.GetByExternalID(ctx, product.CompanyID, *product.ExternalID)
	if err != nil {
		return err
	}
	*product = *stored
	return nil
}

// Create inserts a product without a natural key.
func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	return translate(r.db.WithContext(ctx).Create(product).Error, "product", product.ID)
}

// Update overwrites the mutable fields of an existing product, including its
// external id. The product must belong to product.CompanyID.
func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	product.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Product{}).
		Where("company_id = ? AND id = ?", product.CompanyID, product.ID).
		Updates(map[string]interface{}{
			"external_id":  product.ExternalID,
			"name":         product.Name,
			"number":       product.Number,
			"brand":        product.Brand,
			"brand_number": product.BrandNumber,
			"unit":         product.Unit,
			"description":  product.Description,
			"archive":      product.Archive,
			"updated_at":   product.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error, "product", product.ID)
	}
	if res.RowsAffected == 0 {
		return domain.NewNotFoundError("product %q not found", product.ID)
	}
	return nil
}

// CountByCompany counts a company's products.
func (r *ProductRepository) CountByCompany(ctx context.Context, companyID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Product{}).Where("company_id = ?", companyID).Count(&count).Error; err != nil {
		return 0, translate(err, "products of company", companyID)
	}
	return count, nil
}
