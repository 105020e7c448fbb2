package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type BrokerRepo interface {
	Get(ctx context.Context, tx *gorm.DB, brokerID int) (*types.BrokerSettings, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.BrokerSettings, error)
	ListEnabled(ctx context.Context, tx *gorm.DB) ([]*types.BrokerSettings, error)
	Save(ctx context.Context, tx *gorm.DB, broker *types.BrokerSettings) error
	Delete(ctx context.Context, tx *gorm.DB, brokerID int) error
}

type brokerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBrokerRepo(db *gorm.DB, baseLog *logger.Logger) BrokerRepo {
	return &brokerRepo{db: db, log: baseLog.With("repo", "BrokerRepo")}
}

func (r *brokerRepo) Get(ctx context.Context, tx *gorm.DB, brokerID int) (*types.BrokerSettings, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var broker types.BrokerSettings
	err := transaction.WithContext(ctx).
		Where("broker_id = ?", brokerID).
		First(&broker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &broker, nil
}

func (r *brokerRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.BrokerSettings, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.BrokerSettings
	if err := transaction.WithContext(ctx).
		Order("broker_id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *brokerRepo) ListEnabled(ctx context.Context, tx *gorm.DB) ([]*types.BrokerSettings, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.BrokerSettings
	if err := transaction.WithContext(ctx).
		Where("enabled = ?", true).
		Order("broker_id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *brokerRepo) Save(ctx context.Context, tx *gorm.DB, broker *types.BrokerSettings) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(broker).Error
}

func (r *brokerRepo) Delete(ctx context.Context, tx *gorm.DB, brokerID int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("broker_id = ?", brokerID).
		Delete(&types.BrokerSettings{}).Error
}
