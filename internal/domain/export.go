package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ExportRecord tracks the outbound course-link export of one local
// course to a set of broker participants. Status Created means the
// broker has never seen the resource yet; Deleted with no remaining
// targets is resolved locally without a broker round-trip.
type ExportRecord struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BrokerID      int            `gorm:"column:broker_id;not null;index:idx_export_key,unique" json:"broker_id"`
	CourseID      int64          `gorm:"column:course_id;not null;index:idx_export_key,unique" json:"course_id"`
	TargetMembers datatypes.JSON `gorm:"column:target_members" json:"target_members"`
	Status        string         `gorm:"column:status;not null;default:created" json:"status"`
	ResourceID    int64          `gorm:"column:resource_id;not null;default:0" json:"resource_id"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (ExportRecord) TableName() string { return "cc_export" }

// EnrollmentStatusChange is one queued local enrollment-status change
// awaiting export to the broker as a member_status resource.
type EnrollmentStatusChange struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BrokerID     int       `gorm:"column:broker_id;not null;index" json:"broker_id"`
	UserID       int64     `gorm:"column:user_id;not null;index" json:"user_id"`
	CourseID     int64     `gorm:"column:course_id;not null;index" json:"course_id"`
	PersonID     string    `gorm:"column:person_id;not null" json:"person_id"`
	PersonIDType string    `gorm:"column:person_id_type;not null" json:"person_id_type"`
	CmsCourseID  string    `gorm:"column:cms_course_id;not null" json:"cms_course_id"`
	Status       string    `gorm:"column:status;not null" json:"status"`
	CreatedAt    time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (EnrollmentStatusChange) TableName() string { return "cc_enrollment_status" }
