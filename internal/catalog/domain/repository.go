package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertService(ctx context.Context, db *gorm.DB, svc *Service) error
	FindServiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Service, error)
	FindServiceBySlug(ctx context.Context, db *gorm.DB, slug string) (*Service, error)
	ListServices(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Service, error)
	// UpdateServiceVersioned applies columns only when the stored version
	// equals expectedVersion. applied is false on a version mismatch.
	UpdateServiceVersioned(ctx context.Context, db *gorm.DB, id snowflake.ID, columns map[string]any, expectedVersion int64) (applied bool, err error)
	CurrentVersion(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, bool, error)

	InsertPackage(ctx context.Context, db *gorm.DB, pkg *PricingPackage) error
	ListPackages(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) ([]PricingPackage, error)
	DeletePackage(ctx context.Context, db *gorm.DB, serviceID, packageID snowflake.ID) (bool, error)
}
