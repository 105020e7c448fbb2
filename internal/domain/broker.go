package domain

import (
	"time"
)

// BrokerSettings is one configured ECS broker connection. BrokerID is
// the stable small integer used to scope every queue and record table.
type BrokerSettings struct {
	BrokerID              int       `gorm:"column:broker_id;primaryKey;autoIncrement:false" json:"broker_id"`
	Name                  string    `gorm:"column:name;not null" json:"name"`
	URL                   string    `gorm:"column:url;not null" json:"url"`
	AuthToken             string    `gorm:"column:auth_token" json:"-"`
	TokenSecret           string    `gorm:"column:token_secret" json:"-"`
	PollIntervalSeconds   int       `gorm:"column:poll_interval_seconds;not null;default:60" json:"poll_interval_seconds"`
	Enabled               bool      `gorm:"column:enabled;not null;default:true" json:"enabled"`
	CmsMemberID           int       `gorm:"column:cms_member_id;not null;default:0" json:"cms_member_id"`
	ImportCategoryID      int64     `gorm:"column:import_category_id;not null;default:0" json:"import_category_id"`
	CreateEmptyCategories bool      `gorm:"column:create_empty_categories;not null;default:false" json:"create_empty_categories"`
	KeepOrphanedGroups    bool      `gorm:"column:keep_orphaned_groups;not null;default:true" json:"keep_orphaned_groups"`
	CreatedAt             time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time `gorm:"not null" json:"updated_at"`
}

func (BrokerSettings) TableName() string { return "cc_broker" }
