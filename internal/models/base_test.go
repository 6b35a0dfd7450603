package models

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The schema must migrate on SQLite as well as Postgres, since the test
// suites run against the SQLite driver. IDs come from the BeforeCreate
// hooks, not from a database-side default.
func TestAutoMigrateOnSQLite(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&Campaign{},
		&Referral{},
		&Reward{},
		&ReferralEvent{},
	))

	referral := Referral{
		ReferrerID: uuid.New(),
		Code:       "HOOKID23",
		Status:     ReferralStatusPending,
	}
	require.NoError(t, db.Create(&referral).Error)
	assert.NotEqual(t, uuid.Nil, referral.ID)

	event := ReferralEvent{EventType: EventLinkGenerated}
	require.NoError(t, db.Create(&event).Error)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, time.Minute)
}
