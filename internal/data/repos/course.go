package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type CourseRecordRepo interface {
	GetByResource(ctx context.Context, tx *gorm.DB, brokerID int, resourceID int64) ([]*types.CourseRecord, error)
	GetByCmsCourseID(ctx context.Context, tx *gorm.DB, brokerID int, cmsCourseID string) ([]*types.CourseRecord, error)
	GetCanonical(ctx context.Context, tx *gorm.DB, brokerID int, resourceID int64) (*types.CourseRecord, error)
	GetByCourseID(ctx context.Context, tx *gorm.DB, courseID int64) ([]*types.CourseRecord, error)
	Create(ctx context.Context, tx *gorm.DB, records []*types.CourseRecord) error
	Save(ctx context.Context, tx *gorm.DB, record *types.CourseRecord) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	ListResourceIDs(ctx context.Context, tx *gorm.DB, brokerID int) ([]int64, error)
	ListURLPending(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.CourseRecord, error)
}

type courseRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRecordRepo(db *gorm.DB, baseLog *logger.Logger) CourseRecordRepo {
	return &courseRecordRepo{db: db, log: baseLog.With("repo", "CourseRecordRepo")}
}

func (r *courseRecordRepo) GetByResource(ctx context.Context, tx *gorm.DB, brokerID int, resourceID int64) ([]*types.CourseRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CourseRecord
	if err := transaction.WithContext(ctx).
		Where("broker_id = ? AND resource_id = ?", brokerID, resourceID).
		Order("sort_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseRecordRepo) GetByCmsCourseID(ctx context.Context, tx *gorm.DB, brokerID int, cmsCourseID string) ([]*types.CourseRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CourseRecord
	if err := transaction.WithContext(ctx).
		Where("broker_id = ? AND cms_course_id = ?", brokerID, cmsCourseID).
		Order("sort_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseRecordRepo) GetCanonical(ctx context.Context, tx *gorm.DB, brokerID int, resourceID int64) (*types.CourseRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var record types.CourseRecord
	err := transaction.WithContext(ctx).
		Where("broker_id = ? AND resource_id = ? AND internal_link = 0", brokerID, resourceID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *courseRecordRepo) GetByCourseID(ctx context.Context, tx *gorm.DB, courseID int64) ([]*types.CourseRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CourseRecord
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseRecordRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.CourseRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(records) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&records).Error
}

func (r *courseRecordRepo) Save(ctx context.Context, tx *gorm.DB, record *types.CourseRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(record).Error
}

func (r *courseRecordRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.CourseRecord{}).Error
}

func (r *courseRecordRepo) ListResourceIDs(ctx context.Context, tx *gorm.DB, brokerID int) ([]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []int64
	if err := transaction.WithContext(ctx).
		Model(&types.CourseRecord{}).
		Where("broker_id = ?", brokerID).
		Distinct("resource_id").
		Pluck("resource_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *courseRecordRepo) ListURLPending(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.CourseRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CourseRecord
	if err := transaction.WithContext(ctx).
		Where("broker_id = ? AND internal_link = 0 AND url_status <> ?", brokerID, types.StatusUpToDate).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
