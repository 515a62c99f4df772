package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var sortableColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
}

func orderedPackages(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC").Order("created_at ASC").Order("id ASC")
}

func (r *repo) InsertService(ctx context.Context, db *gorm.DB, svc *domain.Service) error {
	return db.WithContext(ctx).Omit("Packages").Create(svc).Error
}

func (r *repo) FindServiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Service, error) {
	var svc domain.Service
	err := db.WithContext(ctx).
		Preload("Packages", orderedPackages).
		Where("id = ?", id).
		Take(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *repo) FindServiceBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Service, error) {
	var svc domain.Service
	err := db.WithContext(ctx).
		Preload("Packages", orderedPackages).
		Where("slug = ?", slug).
		Take(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *repo) ListServices(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Service, error) {
	var items []domain.Service
	stmt := db.WithContext(ctx).
		Model(&domain.Service{}).
		Preload("Packages", orderedPackages)

	if filter.Title != "" {
		stmt = stmt.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(filter.Title)+"%")
	}
	if filter.PricingMode != "" {
		stmt = stmt.Where("pricing_mode = ?", filter.PricingMode)
	}

	sortBy := strings.ToLower(filter.SortBy)
	if !sortableColumns[sortBy] {
		sortBy = "created_at"
	}
	direction := "ASC"
	if strings.EqualFold(filter.OrderBy, "desc") {
		direction = "DESC"
	}
	stmt = stmt.Order(sortBy + " " + direction).Order("id ASC")

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateServiceVersioned(ctx context.Context, db *gorm.DB, id snowflake.ID, columns map[string]any, expectedVersion int64) (bool, error) {
	updates := make(map[string]any, len(columns)+1)
	for key, value := range columns {
		updates[key] = value
	}
	updates["version"] = gorm.Expr("version + 1")

	res := db.WithContext(ctx).
		Model(&domain.Service{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) CurrentVersion(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, bool, error) {
	var rows []struct {
		Version int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Service{}).
		Select("version").
		Where("id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Version, true, nil
}

func (r *repo) InsertPackage(ctx context.Context, db *gorm.DB, pkg *domain.PricingPackage) error {
	return db.WithContext(ctx).Create(pkg).Error
}

func (r *repo) ListPackages(ctx context.Context, db *gorm.DB, serviceID snowflake.ID) ([]domain.PricingPackage, error) {
	var items []domain.PricingPackage
	err := orderedPackages(db.WithContext(ctx).Where("service_id = ?", serviceID)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DeletePackage(ctx context.Context, db *gorm.DB, serviceID, packageID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).
		Where("service_id = ? AND id = ?", serviceID, packageID).
		Delete(&domain.PricingPackage{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
