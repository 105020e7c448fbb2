package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/edubridge/campusconnect/internal/domain"
	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type DirectoryRepo interface {
	GetTree(ctx context.Context, tx *gorm.DB, brokerID int, rootID int64) (*types.DirectoryTree, error)
	GetTreeByResource(ctx context.Context, tx *gorm.DB, brokerID int, resourceID int64) (*types.DirectoryTree, error)
	ListTrees(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.DirectoryTree, error)
	CreateTree(ctx context.Context, tx *gorm.DB, tree *types.DirectoryTree) error
	SaveTree(ctx context.Context, tx *gorm.DB, tree *types.DirectoryTree) error

	GetNode(ctx context.Context, tx *gorm.DB, brokerID int, rootID, directoryID int64) (*types.Directory, error)
	FindNode(ctx context.Context, tx *gorm.DB, brokerID int, directoryID int64) (*types.Directory, error)
	ListNodes(ctx context.Context, tx *gorm.DB, brokerID int, rootID int64) ([]*types.Directory, error)
	CreateNodes(ctx context.Context, tx *gorm.DB, nodes []*types.Directory) error
	SaveNode(ctx context.Context, tx *gorm.DB, node *types.Directory) error
	DeleteNodesByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type directoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDirectoryRepo(db *gorm.DB, baseLog *logger.Logger) DirectoryRepo {
	return &directoryRepo{db: db, log: baseLog.With("repo", "DirectoryRepo")}
}

func (r *directoryRepo) GetTree(ctx context.Context, tx *gorm.DB, brokerID int, rootID int64) (*types.DirectoryTree, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var tree types.DirectoryTree
	err := transaction.WithContext(ctx).
		Where("broker_id = ? AND root_id = ?", brokerID, rootID).
		First(&tree).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tree, nil
}

func (r *directoryRepo) GetTreeByResource(ctx context.Context, tx *gorm.DB, brokerID int, resourceID int64) (*types.DirectoryTree, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var tree types.DirectoryTree
	err := transaction.WithContext(ctx).
		Where("broker_id = ? AND resource_id = ?", brokerID, resourceID).
		First(&tree).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tree, nil
}

func (r *directoryRepo) ListTrees(ctx context.Context, tx *gorm.DB, brokerID int) ([]*types.DirectoryTree, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.DirectoryTree
	if err := transaction.WithContext(ctx).
		Where("broker_id = ?", brokerID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *directoryRepo) CreateTree(ctx context.Context, tx *gorm.DB, tree *types.DirectoryTree) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(tree).Error
}

func (r *directoryRepo) SaveTree(ctx context.Context, tx *gorm.DB, tree *types.DirectoryTree) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(tree).Error
}

func (r *directoryRepo) GetNode(ctx context.Context, tx *gorm.DB, brokerID int, rootID, directoryID int64) (*types.Directory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var node types.Directory
	err := transaction.WithContext(ctx).
		Where("broker_id = ? AND root_id = ? AND directory_id = ?", brokerID, rootID, directoryID).
		First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *directoryRepo) FindNode(ctx context.Context, tx *gorm.DB, brokerID int, directoryID int64) (*types.Directory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var node types.Directory
	err := transaction.WithContext(ctx).
		Where("broker_id = ? AND directory_id = ?", brokerID, directoryID).
		First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *directoryRepo) ListNodes(ctx context.Context, tx *gorm.DB, brokerID int, rootID int64) ([]*types.Directory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Directory
	if err := transaction.WithContext(ctx).
		Where("broker_id = ? AND root_id = ?", brokerID, rootID).
		Order("sort_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *directoryRepo) CreateNodes(ctx context.Context, tx *gorm.DB, nodes []*types.Directory) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(nodes) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&nodes).Error
}

func (r *directoryRepo) SaveNode(ctx context.Context, tx *gorm.DB, node *types.Directory) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(node).Error
}

func (r *directoryRepo) DeleteNodesByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.Directory{}).Error
}
