package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MembershipRecord statuses. Created/Updated records are pending until
// role assignment succeeds and moves them to Assigned; Deleted records
// are purged once the unenrollment went through.
const (
	MemberAssigned = "assigned"
	MemberCreated  = "created"
	MemberUpdated  = "updated"
	MemberDeleted  = "deleted"
)

type MembershipRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BrokerID       int            `gorm:"column:broker_id;not null;index" json:"broker_id"`
	ResourceID     int64          `gorm:"column:resource_id;not null;index" json:"resource_id"`
	CmsCourseID    string         `gorm:"column:cms_course_id;not null;index" json:"cms_course_id"`
	PersonID       string         `gorm:"column:person_id;not null;index" json:"person_id"`
	PersonIDType   string         `gorm:"column:person_id_type;not null" json:"person_id_type"`
	Role           string         `gorm:"column:role;not null" json:"role"`
	ParallelGroups datatypes.JSON `gorm:"column:parallel_groups" json:"parallel_groups"`
	Status         string         `gorm:"column:status;not null;default:created" json:"status"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (MembershipRecord) TableName() string { return "cc_membership" }
