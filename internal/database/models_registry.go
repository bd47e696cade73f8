package database

import "github.com/v1mal/open-scene-engine-sub000/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Community{},
		&models.Post{},
		&models.Event{},
		&models.Comment{},
		&models.Vote{},
		&models.VoteEvent{},
		&models.Report{},
		&models.Ban{},
		&models.ModerationLog{},
		&models.SavedPost{},
	}
}
