package repository

import (
	"context"

	"siteexpense/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SiteRepository interface {
	List(ctx context.Context, activeOnly bool) ([]model.Site, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Site, error)
	Create(ctx context.Context, site *model.Site) error
	Save(ctx context.Context, site *model.Site) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type siteRepository struct {
	db *gorm.DB
}

func NewSiteRepository(db *gorm.DB) SiteRepository {
	return &siteRepository{db: db}
}

func (r *siteRepository) List(ctx context.Context, activeOnly bool) ([]model.Site, error) {
	db := GetDB(ctx, r.db).Preload("Manager")
	if activeOnly {
		db = db.Where("is_active = ?", true)
	}
	var sites []model.Site
	if err := db.Order("name ASC").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

func (r *siteRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Site, error) {
	var site model.Site
	if err := GetDB(ctx, r.db).Preload("Manager").First(&site, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *siteRepository) Create(ctx context.Context, site *model.Site) error {
	return GetDB(ctx, r.db).Create(site).Error
}

func (r *siteRepository) Save(ctx context.Context, site *model.Site) error {
	return GetDB(ctx, r.db).Omit("Manager").Save(site).Error
}

func (r *siteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.Site{}, "id = ?", id).Error
}
