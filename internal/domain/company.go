package domain

import "time"

// MemberRole is a user's role within a company.
type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// Company owns catalog data and exchange jobs.
type Company struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Company) TableName() string {
	return "companies"
}

// CompanyMember grants a user access to a company.
type CompanyMember struct {
	CompanyID string     `gorm:"type:text;primaryKey" json:"companyId"`
	UserID    string     `gorm:"type:text;primaryKey" json:"userId"`
	Role      MemberRole `gorm:"type:text;not null;default:member" json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (CompanyMember) TableName() string {
	return "company_members"
}
