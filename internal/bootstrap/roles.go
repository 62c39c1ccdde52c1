// Package bootstrap provisions the fixed roles and permissions the
// application relies on. Provisioning is explicit and idempotent: it runs at
// startup and from the seed command, and re-running it converges on the same
// state.
package bootstrap

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"inkwell/internal/authz"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

var allCapabilities = []authz.Capability{
	authz.CapViewPost,
	authz.CapAddPost,
	authz.CapChangePost,
	authz.CapDeletePost,
	authz.CapPublishPost,
}

// Roles ensures every capability exists as a permission row and every role
// group exists with exactly its fixed capability set. Group membership of
// users is never touched.
func Roles(ctx context.Context, db *gorm.DB) error {
	repo := repository.NewGroupRepository(db)

	byCapability := make(map[authz.Capability]models.Permission, len(allCapabilities))
	for _, capability := range allCapabilities {
		perm, err := repo.GetOrCreatePermission(ctx, string(capability), authz.DisplayNames[capability])
		if err != nil {
			return err
		}
		byCapability[capability] = *perm
	}

	for _, role := range []string{authz.RoleReaders, authz.RoleAuthors, authz.RoleEditors} {
		group, err := repo.GetOrCreateGroup(ctx, role)
		if err != nil {
			return err
		}

		caps := authz.RoleCapabilities[role]
		wanted := make([]models.Permission, 0, len(caps))
		for _, c := range caps {
			wanted = append(wanted, byCapability[c])
		}
		if err := repo.ReplacePermissions(ctx, group, wanted); err != nil {
			return err
		}
		slog.Debug("provisioned role", "group", role, "permissions", len(caps))
	}

	return nil
}
