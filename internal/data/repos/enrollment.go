package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type EnrollmentRepo interface {
	ListPending(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.EnrollmentStatusChange, error)
	Create(ctx context.Context, tx *gorm.DB, change *types.EnrollmentStatusChange) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return &enrollmentRepo{db: db, log: baseLog.With("repo", "EnrollmentRepo")}
}

func (r *enrollmentRepo) ListPending(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.EnrollmentStatusChange, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.EnrollmentStatusChange
	if err := transaction.WithContext(ctx).
		Where("broker_id = ?", brokerID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *enrollmentRepo) Create(ctx context.Context, tx *gorm.DB, change *types.EnrollmentStatusChange) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(change).Error
}

func (r *enrollmentRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.EnrollmentStatusChange{}).Error
}
