package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type MembershipRepo interface {
	GetByResource(ctx context.Context, tx *gorm.DB, brokerID int, resourceID int64) ([]*types.MembershipRecord, error)
	GetByCmsCourse(ctx context.Context, tx *gorm.DB, brokerID int, cmsCourseID string) ([]*types.MembershipRecord, error)
	ListUnassigned(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.MembershipRecord, error)
	ListResourceIDs(ctx context.Context, tx *gorm.DB, brokerID int) ([]int64, error)
	Create(ctx context.Context, tx *gorm.DB, records []*types.MembershipRecord) error
	Save(ctx context.Context, tx *gorm.DB, record *types.MembershipRecord) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type membershipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMembershipRepo(db *gorm.DB, baseLog *logger.Logger) MembershipRepo {
	return &membershipRepo{db: db, log: baseLog.With("repo", "MembershipRepo")}
}

func (r *membershipRepo) GetByResource(ctx context.Context, tx *gorm.DB, brokerID int, resourceID int64) ([]*types.MembershipRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.MembershipRecord
	if err := transaction.WithContext(ctx).
		Where("broker_id = ? AND resource_id = ?", brokerID, resourceID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *membershipRepo) GetByCmsCourse(ctx context.Context, tx *gorm.DB, brokerID int, cmsCourseID string) ([]*types.MembershipRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.MembershipRecord
	if err := transaction.WithContext(ctx).
		Where("broker_id = ? AND cms_course_id = ?", brokerID, cmsCourseID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *membershipRepo) ListUnassigned(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.MembershipRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.MembershipRecord
	if err := transaction.WithContext(ctx).
		Where("broker_id = ? AND status <> ?", brokerID, types.MemberAssigned).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *membershipRepo) ListResourceIDs(ctx context.Context, tx *gorm.DB, brokerID int) ([]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []int64
	if err := transaction.WithContext(ctx).
		Model(&types.MembershipRecord{}).
		Where("broker_id = ?", brokerID).
		Distinct("resource_id").
		Pluck("resource_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *membershipRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.MembershipRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(records) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&records).Error
}

func (r *membershipRepo) Save(ctx context.Context, tx *gorm.DB, record *types.MembershipRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(record).Error
}

func (r *membershipRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.MembershipRecord{}).Error
}
