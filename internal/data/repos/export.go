package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type ExportRepo interface {
	GetByCourse(ctx context.Context, tx *gorm.DB, brokerID int, courseID int64) (*types.ExportRecord, error)
	ListPending(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.ExportRecord, error)
	List(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.ExportRecord, error)
	Create(ctx context.Context, tx *gorm.DB, record *types.ExportRecord) error
	Save(ctx context.Context, tx *gorm.DB, record *types.ExportRecord) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type exportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExportRepo(db *gorm.DB, baseLog *logger.Logger) ExportRepo {
	return &exportRepo{db: db, log: baseLog.With("repo", "ExportRepo")}
}

func (r *exportRepo) GetByCourse(ctx context.Context, tx *gorm.DB, brokerID int, courseID int64) (*types.ExportRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var record types.ExportRecord
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

func (r *exportRepo) ListPending(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.ExportRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ExportRecord
	if err := transaction.WithContext(ctx).
		Where("broker_id = ? AND status <> ?", brokerID, types.StatusUpToDate).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *exportRepo) List(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.ExportRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ExportRecord
	if err := transaction.WithContext(ctx).
		Where("broker_id = ?", brokerID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *exportRepo) Create(ctx context.Context, tx *gorm.DB, record *types.ExportRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(record).Error
}

func (r *exportRepo) Save(ctx context.Context, tx *gorm.DB, record *types.ExportRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(record).Error
}

func (r *exportRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.ExportRecord{}).Error
}
