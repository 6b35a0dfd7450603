package migrations

import (
	"github.com/craftfolio/backend/internal/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

var createReferralTables = &gormigrate.Migration{
	ID: "000001_create_referral_tables",
	Migrate: func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&models.Campaign{},
			&models.Referral{},
			&models.Reward{},
			&models.ReferralEvent{},
		)
	},
	Rollback: func(tx *gorm.DB) error {
		return tx.Migrator().DropTable(
			&models.ReferralEvent{},
			&models.Reward{},
			&models.Referral{},
			&models.Campaign{},
		)
	},
}
