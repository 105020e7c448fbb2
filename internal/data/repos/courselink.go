package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type CourseLinkRepo interface {
	GetByResource(ctx context.Context, tx *gorm.DB, brokerID int, resourceID int64) (*types.CourseLinkRecord, error)
	GetByCourse(ctx context.Context, tx *gorm.DB, brokerID int, courseID int64) (*types.CourseLinkRecord, error)
	ListResourceIDs(ctx context.Context, tx *gorm.DB, brokerID int) ([]int64, error)
	Create(ctx context.Context, tx *gorm.DB, record *types.CourseLinkRecord) error
	Save(ctx context.Context, tx *gorm.DB, record *types.CourseLinkRecord) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type courseLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseLinkRepo(db *gorm.DB, baseLog *logger.Logger) CourseLinkRepo {
	return &courseLinkRepo{db: db, log: baseLog.With("repo", "CourseLinkRepo")}
}

func (r *courseLinkRepo) GetByResource(ctx context.Context, tx *gorm.DB, brokerID int, resourceID int64) (*types.CourseLinkRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var record types.CourseLinkRecord
	err := transaction.WithContext(ctx).
		Where("broker_id = ? AND resource_id = ?", brokerID, resourceID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *courseLinkRepo) GetByCourse(ctx context.Context, tx *gorm.DB, brokerID int, courseID int64) (*types.CourseLinkRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var record types.CourseLinkRecord
	err := transaction.WithContext(ctx).
		Where("broker_id = ? AND course_id = ?", brokerID, courseID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *courseLinkRepo) ListResourceIDs(ctx context.Context, tx *gorm.DB, brokerID int) ([]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var ids []int64
	if err := transaction.WithContext(ctx).
		Model(&types.CourseLinkRecord{}).
		Where("broker_id = ?", brokerID).
		Pluck("resource_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *courseLinkRepo) Create(ctx context.Context, tx *gorm.DB, record *types.CourseLinkRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(record).Error
}

func (r *courseLinkRepo) Save(ctx context.Context, tx *gorm.DB, record *types.CourseLinkRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(record).Error
}

func (r *courseLinkRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.CourseLinkRecord{}).Error
}
