package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// UserReferralStatsViewSQL creates the derived per-user aggregate the
// engine reads for eligibility checks and the stats endpoint. Kept to
// portable SQL so the test suite can install it on SQLite as well.
const UserReferralStatsViewSQL = `
CREATE VIEW user_referral_stats AS
SELECT r.referrer_id AS user_id,
       COUNT(*) AS total_referrals,
       SUM(CASE WHEN r.status = 'pending' THEN 1 ELSE 0 END) AS pending_referrals,
       SUM(CASE WHEN r.status = 'converted' THEN 1 ELSE 0 END) AS converted_referrals,
       SUM(CASE WHEN r.status = 'fraudulent' THEN 1 ELSE 0 END) AS fraudulent_referrals,
       (SELECT COUNT(*)
          FROM referral_events e
         WHERE e.event_type = 'referral_link_clicked'
           AND e.referral_id IN (SELECT r2.id FROM referrals r2 WHERE r2.referrer_id = r.referrer_id)
       ) AS total_clicks
  FROM referrals r
 WHERE r.deleted_at IS NULL
 GROUP BY r.referrer_id`

var createUserReferralStatsView = &gormigrate.Migration{
	ID: "000002_create_user_referral_stats_view",
	Migrate: func(tx *gorm.DB) error {
		return tx.Exec(UserReferralStatsViewSQL).Error
	},
	Rollback: func(tx *gorm.DB) error {
		return tx.Exec(`DROP VIEW IF EXISTS user_referral_stats`).Error
	},
}
