package repository

import (
	"context"

	"github.com/timmy/catalogx/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockRepository stores stocks and per-product balances.
type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

// ResolveStock looks a stock up by id when given, else by external id.
func (r *StockRepository) ResolveStock(ctx context.Context, companyID, id, externalID string) (*domain.Stock, error) {
	var st domain.Stock
	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	key := id
	if id != "" {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("external_id = ?", externalID)
		key = externalID
	}
	if err := q.First(&st).Error; err != nil {
		return nil, translate(err, "stock", key)
	}
	return &st, nil
}

// UpsertStock creates or renames a stock keyed by (company_id, external_id).
func (r *StockRepository) UpsertStock(ctx context.Context, st *domain.Stock) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(st).Error
	if err != nil {
		return translate(err, "stock", st.ExternalID)
	}
	stored, err := r.ResolveStock(ctx, st.CompanyID, "", st.ExternalID)
	if err != nil {
		return err
	}
	*st = *stored
	return nil
}

// UpsertBalance sets the quantity of (product, stock), replacing any previous value.
func (r *StockRepository) UpsertBalance(ctx context.Context, bal *domain.StockBalance) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "stock_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(bal).Error
	return translate(err, "stock balance of product", bal.ProductID)
}

// GetBalance returns the stored balance of (product, stock).
func (r *StockRepository) GetBalance(ctx context.Context, productID, stockID string) (*domain.StockBalance, error) {
	var bal domain.StockBalance
	err := r.db.WithContext(ctx).First(&bal, "product_id = ? AND stock_id = ?", productID, stockID).Error
	if err != nil {
		return nil, translate(err, "stock balance of product", productID)
	}
	return &bal, nil
}

// CountBalances counts the balance rows of a product.
func (r *StockRepository) CountBalances(ctx context.Context, productID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.StockBalance{}).Where("product_id = ?", productID).Count(&count).Error
	return count, translate(err, "balances of product", productID)
}
