package domain

import (
	"time"

	"github.com/google/uuid"
)

// DirectoryTree mapping modes. Pending trees can move to Whole or
// Manual exactly once; Manual never becomes Whole; Deleted is terminal.
const (
	TreeModePending = "pending"
	TreeModeWhole   = "whole"
	TreeModeManual  = "manual"
	TreeModeDeleted = "deleted"
)

// Directory node mapping kinds.
const (
	DirAutomatic     = "automatic"
	DirManualPending = "manual_pending"
	DirManual        = "manual"
	DirDeleted       = "deleted"
)

// Derived directory statuses (never stored).
const (
	DirStatusPendingUnmapped  = "pending_unmapped"
	DirStatusPendingAutomatic = "pending_automatic"
	DirStatusPendingManual    = "pending_manual"
	DirStatusMappedAutomatic  = "mapped_automatic"
	DirStatusMappedManual     = "mapped_manual"
	DirStatusDeleted          = "deleted"
)

type DirectoryTree struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BrokerID          int       `gorm:"column:broker_id;not null;index:idx_dir_tree_root,unique" json:"broker_id"`
	RootID            int64     `gorm:"column:root_id;not null;index:idx_dir_tree_root,unique" json:"root_id"`
	ResourceID        int64     `gorm:"column:resource_id;not null;index" json:"resource_id"`
	Title             string    `gorm:"column:title;not null" json:"title"`
	SourceMemberID    int       `gorm:"column:source_member_id;not null" json:"source_member_id"`
	CategoryID        *int64    `gorm:"column:category_id" json:"category_id,omitempty"`
	Mode              string    `gorm:"column:mode;not null;default:pending" json:"mode"`
	TakeoverTitle     bool      `gorm:"column:takeover_title;not null;default:false" json:"takeover_title"`
	TakeoverPosition  bool      `gorm:"column:takeover_position;not null;default:false" json:"takeover_position"`
	TakeoverAllocation bool     `gorm:"column:takeover_allocation;not null;default:false" json:"takeover_allocation"`
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

func (DirectoryTree) TableName() string { return "cc_directory_tree" }

// Directory is one node inside a tree. The root node has
// DirectoryID == RootID and ParentID == 0.
type Directory struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BrokerID    int       `gorm:"column:broker_id;not null;index:idx_directory_key,unique" json:"broker_id"`
	RootID      int64     `gorm:"column:root_id;not null;index:idx_directory_key,unique" json:"root_id"`
	DirectoryID int64     `gorm:"column:directory_id;not null;index:idx_directory_key,unique" json:"directory_id"`
	ParentID    int64     `gorm:"column:parent_id;not null;default:0" json:"parent_id"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	SortOrder   int       `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	CategoryID  *int64    `gorm:"column:category_id" json:"category_id,omitempty"`
	MappingKind string    `gorm:"column:mapping_kind;not null;default:automatic" json:"mapping_kind"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Directory) TableName() string { return "cc_directory" }

func (d *Directory) IsRoot() bool { return d.DirectoryID == d.RootID }

// CanMap reports whether a manual mapping may be applied to this node.
func (d *Directory) CanMap() bool {
	return d.MappingKind == DirAutomatic || d.MappingKind == DirManualPending
}

// CanUnmap reports whether a manual mapping may be removed again. Once
// courses were created beneath the node (DirManual) the mapping sticks.
func (d *Directory) CanUnmap() bool {
	return d.MappingKind == DirManualPending
}
