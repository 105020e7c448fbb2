package domain

import (
	"time"

	"github.com/google/uuid"
)

// Export/URL status values shared by CourseRecord, ExportRecord and
// EnrollmentStatusChange.
const (
	StatusUpToDate = "uptodate"
	StatusCreated  = "created"
	StatusUpdated  = "updated"
	StatusDeleted  = "deleted"
)

// CourseRecord links one broker course resource to one local course.
// A resource may own several records (one per mapped category and per
// parallel-group course); exactly one of them is canonical
// (InternalLink == 0), all others are internal-link redirects to it.
type CourseRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BrokerID       int       `gorm:"column:broker_id;not null;index:idx_course_record_res" json:"broker_id"`
	ResourceID     int64     `gorm:"column:resource_id;not null;index:idx_course_record_res" json:"resource_id"`
	CmsCourseID    string    `gorm:"column:cms_course_id;not null;index" json:"cms_course_id"`
	CourseID       int64     `gorm:"column:course_id;not null;index" json:"course_id"`
	SourceMemberID int       `gorm:"column:source_member_id;not null" json:"source_member_id"`
	InternalLink   int64     `gorm:"column:internal_link;not null;default:0" json:"internal_link"`
	DirectoryID    int64     `gorm:"column:directory_id;not null;default:0" json:"directory_id"`
	SortOrder      int64     `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	URLStatus      string    `gorm:"column:url_status;not null;default:uptodate" json:"url_status"`
	URLResourceID  int64     `gorm:"column:url_resource_id;not null;default:0" json:"url_resource_id"`
	ContentHash    string    `gorm:"column:content_hash" json:"content_hash"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (CourseRecord) TableName() string { return "cc_course_record" }

func (r *CourseRecord) Canonical() bool { return r.InternalLink == 0 }

// CoursePGroup records which host course (and optionally host group) a
// parallel group of a broker course was materialized into. The pair
// (cms_course_id, group_num) is unique per broker.
type CoursePGroup struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BrokerID    int       `gorm:"column:broker_id;not null;index:idx_pgroup_key,unique" json:"broker_id"`
	ResourceID  int64     `gorm:"column:resource_id;not null;index" json:"resource_id"`
	CmsCourseID string    `gorm:"column:cms_course_id;not null;index:idx_pgroup_key,unique" json:"cms_course_id"`
	GroupNum    int       `gorm:"column:group_num;not null;index:idx_pgroup_key,unique" json:"group_num"`
	CourseID    int64     `gorm:"column:course_id;not null;index" json:"course_id"`
	GroupID     int64     `gorm:"column:group_id;not null;default:0" json:"group_id"`
	GroupTitle  string    `gorm:"column:group_title" json:"group_title"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (CoursePGroup) TableName() string { return "cc_course_pgroup" }
