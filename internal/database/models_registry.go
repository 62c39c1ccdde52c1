package database

import "inkwell/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Permission{},
		&models.Group{},
		&models.User{},
		&models.Category{},
		&models.Post{},
	}
}
