// Package repotest opens throwaway migrated databases for tests.
package repotest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/repository"
)

// NewDB returns a migrated in-memory SQLite database private to t. A single
// connection serializes access, which SQLite's shared cache requires for
// concurrent writers.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), repository.NewGormConfig(gormlogger.Default.LogMode(gormlogger.Silent)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, repository.Migrate(db))
	return db
}

// SeedCompany creates a company with an admin and a plain member.
func SeedCompany(t testing.TB, db *gorm.DB, companyID, adminID, memberID string) {
	t.Helper()
	repo := repository.NewCompanyRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &domain.Company{ID: companyID, Name: companyID}))
	if adminID != "" {
		require.NoError(t, repo.AddMember(ctx, &domain.CompanyMember{CompanyID: companyID, UserID: adminID, Role: domain.RoleAdmin}))
	}
	if memberID != "" {
		require.NoError(t, repo.AddMember(ctx, &domain.CompanyMember{CompanyID: companyID, UserID: memberID, Role: domain.RoleMember}))
	}
}
