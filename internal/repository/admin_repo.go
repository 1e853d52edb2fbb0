package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/models"
)

// AdminRepository persists admin panel accounts.
type AdminRepository interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByID(ctx context.Context, id uint) (models.Admin, error)
	GetByEmail(ctx context.Context, email string) (models.Admin, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
}

type adminRepository struct {
	db *gorm.DB
}

// NewAdminRepository constructs the admin repository.
func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepository{db: db}
}

func (r *adminRepository) Create(ctx context.Context, admin *models.Admin) error {
	return r.db.WithContext(ctx).Create(admin).Error
}

func (r *adminRepository) GetByID(ctx context.Context, id uint) (models.Admin, error) {
	var admin models.Admin
	err := r.db.WithContext(ctx).First(&admin, id).Error
	return admin, err
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (models.Admin, error) {
	var admin models.Admin
	err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&admin).Error
	return admin, err
}

func (r *adminRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Admin{}).
		Where("username = ? OR LOWER(email) = LOWER(?)", username, email).
		Count(&count).Error
	return count > 0, err
}
