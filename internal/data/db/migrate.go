package db

import (
	types "github.com/edubridge/campusconnect/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Broker connections
		&types.BrokerSettings{},

		// Event queue
		&types.EventQueueItem{},

		// Courses + parallel groups
		&types.CourseRecord{},
		&types.CoursePGroup{},
		&types.CourseLinkRecord{},

		// Directory mapping
		&types.DirectoryTree{},
		&types.Directory{},

		// Memberships
		&types.MembershipRecord{},

		// Outbound exports
		&types.ExportRecord{},
		&types.EnrollmentStatusChange{},
	)
}
