package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// GroupRepository defines persistence operations for groups and permissions.
// It is used by the provisioning step; groups are immutable afterwards
// outside administrative action.
type GroupRepository interface {
	GetOrCreateGroup(ctx context.Context, name string) (*models.Group, error)
	GetOrCreatePermission(ctx context.Context, codename, name string) (*models.Permission, error)
	ReplacePermissions(ctx context.Context, group *models.Group, perms []models.Permission) error
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository returns a new GroupRepository implementation.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) GetOrCreateGroup(ctx context.Context, name string) (*models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).
		Where(models.Group{Name: name}).
		FirstOrCreate(&group).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &group, nil
}

func (r *groupRepository) GetOrCreatePermission(ctx context.Context, codename, name string) (*models.Permission, error) {
	var perm models.Permission
	err := r.db.WithContext(ctx).
		Where(models.Permission{Codename: codename}).
		Attrs(models.Permission{Name: name}).
		FirstOrCreate(&perm).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &perm, nil
}

func (r *groupRepository) ReplacePermissions(ctx context.Context, group *models.Group, perms []models.Permission) error {
	if err := r.db.WithContext(ctx).Model(group).Association("Permissions").Replace(perms); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
