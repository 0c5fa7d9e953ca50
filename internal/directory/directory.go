package directory

import (
	"context"
	"errors"

	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/workflow"
	"gorm.io/gorm"
)

// UserDirectory looks up user roles in the users table. It satisfies
// workflow.UserDirectory.
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) RoleOf(ctx context.Context, userID string) (models.Role, error) {
	var user models.User
	err := d.db.WithContext(ctx).Select("role").First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", workflow.ErrNotFound("user", userID)
		}
		return "", err
	}
	return user.Role, nil
}

// ProviderDirectory answers whether a user can hold a clinical
// schedule. It satisfies workflow.ProviderDirectory.
type ProviderDirectory struct {
	db *gorm.DB
}

func NewProviderDirectory(db *gorm.DB) *ProviderDirectory {
	return &ProviderDirectory{db: db}
}

func (d *ProviderDirectory) Exists(ctx context.Context, providerID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND role IN ?", providerID, []models.Role{models.RoleDoctor, models.RoleNurse}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
