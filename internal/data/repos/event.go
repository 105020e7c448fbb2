package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type EventRepo interface {
	Get(ctx context.Context, tx *gorm.DB, brokerID int, kind string, resourceID int64) (*types.EventQueueItem, error)
	Insert(ctx context.Context, tx *gorm.DB, item *types.EventQueueItem) error
	Save(ctx context.Context, tx *gorm.DB, item *types.EventQueueItem) error
	OldestPending(ctx context.Context, tx *gorm.DB, brokerID int, exclude []uuid.UUID) (*types.EventQueueItem, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	CountByBroker(ctx context.Context, tx *gorm.DB) (map[int]int64, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{db: db, log: baseLog.With("repo", "EventRepo")}
}

func (r *eventRepo) Get(ctx context.Context, tx *gorm.DB, brokerID int, kind string, resourceID int64) (*types.EventQueueItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var item types.EventQueueItem
	err := transaction.WithContext(ctx).
		Where("broker_id = ? AND kind = ? AND resource_id = ?", brokerID, kind, resourceID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *eventRepo) Insert(ctx context.Context, tx *gorm.DB, item *types.EventQueueItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(item).Error
}

func (r *eventRepo) Save(ctx context.Context, tx *gorm.DB, item *types.EventQueueItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(item).Error
}

func (r *eventRepo) OldestPending(ctx context.Context, tx *gorm.DB, brokerID int, exclude []uuid.UUID) (*types.EventQueueItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).Order("created_at ASC")
	if brokerID != 0 {
		q = q.Where("broker_id = ?", brokerID)
	}
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}

	var item types.EventQueueItem
	err := q.First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *eventRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.EventQueueItem{}).Error
}

func (r *eventRepo) CountByBroker(ctx context.Context, tx *gorm.DB) (map[int]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var rows []struct {
		BrokerID int
		N        int64
	}
	err := transaction.WithContext(ctx).
		Model(&types.EventQueueItem{}).
		Select("broker_id, count(*) as n").
		Group("broker_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int]int64, len(rows))
	for _, row := range rows {
		out[row.BrokerID] = row.N
	}
	return out, nil
}
