package domain

import (
	"time"

	"github.com/google/uuid"
)

// CourseLinkRecord is one remote participant's course imported as a
// lightweight placeholder course that redirects to the remote host.
type CourseLinkRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BrokerID    int       `gorm:"column:broker_id;not null;index:idx_courselink_res,unique" json:"broker_id"`
	ResourceID  int64     `gorm:"column:resource_id;not null;index:idx_courselink_res,unique" json:"resource_id"`
	CourseID    int64     `gorm:"column:course_id;not null;index" json:"course_id"`
	CmsCourseID string    `gorm:"column:cms_course_id" json:"cms_course_id"`
	SenderMID   int       `gorm:"column:sender_mid;not null" json:"sender_mid"`
	URL         string    `gorm:"column:url;not null" json:"url"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (CourseLinkRecord) TableName() string { return "cc_course_link" }
