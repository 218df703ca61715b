package repository

import (
	"context"

	"siteexpense/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserListFilter narrows the admin/metadata user listing.
type UserListFilter struct {
	SiteID *uuid.UUID
	Status string
	Role   string
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Save(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, filter UserListFilter) ([]model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) Save(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Omit("Site").Save(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Delete(&model.User{}, "id = ?", id).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Site").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Site").First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserListFilter) ([]model.User, error) {
	db := GetDB(ctx, r.db).Preload("Site")
	if filter.SiteID != nil {
		db = db.Where("site_id = ?", *filter.SiteID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Role != "" {
		db = db.Where("role = ?", filter.Role)
	}
	var users []model.User
	if err := db.Order("full_name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
