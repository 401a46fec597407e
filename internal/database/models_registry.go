package database

import "campuschat/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Chat messages are not listed; they live only in the channel store.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Admin{},
		&models.UserBlock{},
		&models.UserReport{},
		&models.Setting{},
	}
}
