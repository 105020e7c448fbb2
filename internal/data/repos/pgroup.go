package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type PGroupRepo interface {
	GetByCmsCourse(ctx context.Context, tx *gorm.DB, brokerID int, cmsCourseID string) ([]*types.CoursePGroup, error)
	GetByNum(ctx context.Context, tx *gorm.DB, brokerID int, cmsCourseID string, groupNum int) (*types.CoursePGroup, error)
	GetByCourseID(ctx context.Context, tx *gorm.DB, courseID int64) ([]*types.CoursePGroup, error)
	Create(ctx context.Context, tx *gorm.DB, groups []*types.CoursePGroup) error
	Save(ctx context.Context, tx *gorm.DB, group *types.CoursePGroup) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type pgroupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPGroupRepo(db *gorm.DB, baseLog *logger.Logger) PGroupRepo {
	return &pgroupRepo{db: db, log: baseLog.With("repo", "PGroupRepo")}
}

func (r *pgroupRepo) GetByCmsCourse(ctx context.Context, tx *gorm.DB, brokerID int, cmsCourseID string) ([]*types.CoursePGroup, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CoursePGroup
	if err := transaction.WithContext(ctx).
		Where("broker_id = ? AND cms_course_id = ?", brokerID, cmsCourseID).
		Order("group_num ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *pgroupRepo) GetByNum(ctx context.Context, tx *gorm.DB, brokerID int, cmsCourseID string, groupNum int) (*types.CoursePGroup, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var group types.CoursePGroup
	err := transaction.WithContext(ctx).
		Where("broker_id = ? AND cms_course_id = ? AND group_num = ?", brokerID, cmsCourseID, groupNum).
		First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *pgroupRepo) GetByCourseID(ctx context.Context, tx *gorm.DB, courseID int64) ([]*types.CoursePGroup, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CoursePGroup
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("group_num ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *pgroupRepo) Create(ctx context.Context, tx *gorm.DB, groups []*types.CoursePGroup) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(groups) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&groups).Error
}

func (r *pgroupRepo) Save(ctx context.Context, tx *gorm.DB, group *types.CoursePGroup) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(group).Error
}

func (r *pgroupRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.CoursePGroup{}).Error
}
