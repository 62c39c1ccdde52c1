package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"inkwell/internal/authz"
	"inkwell/internal/database"
	"inkwell/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func groupCapabilities(t *testing.T, db *gorm.DB, name string) authz.Set {
	t.Helper()

	var group models.Group
	require.NoError(t, db.Preload("Permissions").Where("name = ?", name).First(&group).Error)

	caps := authz.NewSet()
	for _, p := range group.Permissions {
		caps.Add(authz.Capability(p.Codename))
	}
	return caps
}

func TestRoles_ProvisionsGroupsAndPermissions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, Roles(ctx, db))

	var permCount, groupCount int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&permCount).Error)
	require.NoError(t, db.Model(&models.Group{}).Count(&groupCount).Error)
	assert.EqualValues(t, 5, permCount)
	assert.EqualValues(t, 3, groupCount)

	readers := groupCapabilities(t, db, authz.RoleReaders)
	assert.True(t, readers.Has(authz.CapViewPost))
	assert.False(t, readers.Has(authz.CapAddPost))

	authors := groupCapabilities(t, db, authz.RoleAuthors)
	assert.True(t, authors.Has(authz.CapAddPost))
	assert.True(t, authors.Has(authz.CapChangePost))
	assert.True(t, authors.Has(authz.CapDeletePost))
	assert.False(t, authors.Has(authz.CapPublishPost))

	editors := groupCapabilities(t, db, authz.RoleEditors)
	for _, c := range []authz.Capability{
		authz.CapViewPost, authz.CapAddPost, authz.CapChangePost,
		authz.CapDeletePost, authz.CapPublishPost,
	} {
		assert.True(t, editors.Has(c), "editors missing %s", c)
	}
}

func TestRoles_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, Roles(ctx, db))
	require.NoError(t, Roles(ctx, db))

	var permCount, groupCount int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&permCount).Error)
	require.NoError(t, db.Model(&models.Group{}).Count(&groupCount).Error)
	assert.EqualValues(t, 5, permCount)
	assert.EqualValues(t, 3, groupCount)

	editors := groupCapabilities(t, db, authz.RoleEditors)
	assert.Len(t, editors, 5)
}
