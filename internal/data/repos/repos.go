package repos

import (
	"gorm.io/gorm"

	"github.com/edubridge/campusconnect/internal/platform/logger"
)

// Repos bundles every repository over the shared connector database.
type Repos struct {
	Brokers       BrokerRepo
	Events        EventRepo
	CourseRecords CourseRecordRepo
	CourseLinks   CourseLinkRepo
	PGroups       PGroupRepo
	Directories   DirectoryRepo
	Memberships   MembershipRepo
	Exports       ExportRepo
	Enrollments   EnrollmentRepo
}

func New(db *gorm.DB, baseLog *logger.Logger) *Repos {
	return &Repos{
		Brokers:       NewBrokerRepo(db, baseLog),
		Events:        NewEventRepo(db, baseLog),
		CourseRecords: NewCourseRecordRepo(db, baseLog),
		CourseLinks:   NewCourseLinkRepo(db, baseLog),
		PGroups:       NewPGroupRepo(db, baseLog),
		Directories:   NewDirectoryRepo(db, baseLog),
		Memberships:   NewMembershipRepo(db, baseLog),
		Exports:       NewExportRepo(db, baseLog),
		Enrollments:   NewEnrollmentRepo(db, baseLog),
	}
}
