package database

import (
	"testing"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestPersistentModels_IncludesLedgerTables(t *testing.T) {
	want := map[string]bool{"votes": false, "vote_events": false, "reports": false, "moderation_logs": false}

	db, err := gorm.Open(sqlite.Open(":memory:"), GormConfig())
	require.NoError(t, err)

	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		require.NoError(t, stmt.Parse(model))
		if _, ok := want[stmt.Schema.Table]; ok {
			want[stmt.Schema.Table] = true
		}
	}
	for table, found := range want {
		require.True(t, found, "PersistentModels should include %s", table)
	}
}

func TestAutoMigrate_EnforcesUniqueVotes(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, AutoMigrate(db))

	vote := models.Vote{UserID: 1, TargetType: models.VoteTargetPost, TargetID: 9, Value: 1}
	require.NoError(t, db.Create(&vote).Error)

	dup := models.Vote{UserID: 1, TargetType: models.VoteTargetPost, TargetID: 9, Value: -1}
	err = db.Create(&dup).Error
	require.Error(t, err)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
