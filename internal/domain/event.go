package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResourceKind values are the broker's wire identifiers and must be
// preserved verbatim for interop.
type ResourceKind string

const (
	KindCourseLink    ResourceKind = "campusconnect/courselinks"
	KindDirectoryTree ResourceKind = "campusconnect/directory_trees"
	KindCourse        ResourceKind = "campusconnect/courses"
	KindCourseMembers ResourceKind = "campusconnect/course_members"
	KindCourseURL     ResourceKind = "campusconnect/course_urls"
	KindMemberStatus  ResourceKind = "campusconnect/member_status"
)

func (k ResourceKind) Valid() bool {
	switch k {
	case KindCourseLink, KindDirectoryTree, KindCourse, KindCourseMembers, KindCourseURL, KindMemberStatus:
		return true
	}
	return false
}

type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeDestroyed ChangeKind = "destroyed"
)

func (c ChangeKind) Valid() bool {
	switch c {
	case ChangeCreated, ChangeUpdated, ChangeDestroyed:
		return true
	}
	return false
}

// ResourceEvent is one validated change notification drained from the
// broker's event fifo.
type ResourceEvent struct {
	Kind       ResourceKind
	ResourceID int64
	Change     ChangeKind
	BrokerID   int
}

func NewResourceEvent(kind ResourceKind, resourceID int64, change ChangeKind, brokerID int) (ResourceEvent, error) {
	if !kind.Valid() {
		return ResourceEvent{}, fmt.Errorf("unknown resource kind %q", string(kind))
	}
	if !change.Valid() {
		return ResourceEvent{}, fmt.Errorf("unknown change kind %q", string(change))
	}
	if resourceID <= 0 {
		return ResourceEvent{}, fmt.Errorf("invalid resource id %d", resourceID)
	}
	return ResourceEvent{Kind: kind, ResourceID: resourceID, Change: change, BrokerID: brokerID}, nil
}

// EventQueueItem is the durable form of a queued ResourceEvent. One row
// exists per (kind, resource id, broker id); Status carries the pending
// change intent.
type EventQueueItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BrokerID   int       `gorm:"column:broker_id;not null;index:idx_event_queue_key,unique" json:"broker_id"`
	Kind       string    `gorm:"column:kind;not null;index:idx_event_queue_key,unique" json:"kind"`
	ResourceID int64     `gorm:"column:resource_id;not null;index:idx_event_queue_key,unique" json:"resource_id"`
	Status     string    `gorm:"column:status;not null" json:"status"`
	FailCount  int       `gorm:"column:fail_count;not null;default:0" json:"fail_count"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (EventQueueItem) TableName() string { return "cc_event_queue" }

func (e *EventQueueItem) Event() (ResourceEvent, error) {
	return NewResourceEvent(ResourceKind(e.Kind), e.ResourceID, ChangeKind(e.Status), e.BrokerID)
}
