package repository

import (
	"context"

	"github.com/timmy/catalogx/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompanyRepository answers membership questions for authorization.
type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Create inserts a company, leaving an existing one untouched.
func (r *CompanyRepository) Create(ctx context.Context, company *domain.Company) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(company).Error
	return translate(err, "company", company.ID)
}

// GetByID retrieves a company by its ID.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	var company domain.Company
	if err := r.db.WithContext(ctx).First(&company, "id = ?", id).Error; err != nil {
		return nil, translate(err, "company", id)
	}
	return &company, nil
}

// AddMember grants userID a role in companyID, replacing any previous role.
func (r *CompanyRepository) AddMember(ctx context.Context, member *domain.CompanyMember) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(member).Error
	return translate(err, "company member", member.UserID)
}

// GetMember returns the membership of userID in companyID.
func (r *CompanyRepository) GetMember(ctx context.Context, companyID, userID string) (*domain.CompanyMember, error) {
	var member domain.CompanyMember
	err := r.db.WithContext(ctx).First(&member, "company_id = ? AND user_id = ?", companyID, userID).Error
	if err != nil {
		return nil, translate(err, "company member", userID)
	}
	return &member, nil
}
