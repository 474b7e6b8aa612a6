package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/types"
)

// ChannelRepo reads always exclude soft-deleted rows; gorm's DeletedAt
// handles the filter. SoftDelete keeps the row so the derived collection
// name survives a reactivate.
type ChannelRepo interface {
  Create(ctx context.Context, tx *gorm.DB, channel *types.Channel) (*types.Channel, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Channel, error)
  GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Channel, error)
  List(ctx context.Context, tx *gorm.DB) ([]*types.Channel, error)
  SoftDelete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type channelRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChannelRepo(db *gorm.DB, baseLog *logger.Logger) ChannelRepo {
  repoLog := baseLog.With("repo", "ChannelRepo")
  return &channelRepo{db: db, log: repoLog}
}

func (r *channelRepo) Create(ctx context.Context, tx *gorm.DB, channel *types.Channel) (*types.Channel, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if err := transaction.WithContext(ctx).Create(channel).Error; err != nil {
    return nil, err
  }
  return channel, nil
}

func (r *channelRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Channel, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var channel types.Channel
  if err := transaction.WithContext(ctx).Where("id = ?", id).First(&channel).Error; err != nil {
    return nil, err
  }
  return &channel, nil
}

func (r *channelRepo) GetByName(ctx context.Context, tx *gorm.DB, name string) (*types.Channel, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var channel types.Channel
  if err := transaction.WithContext(ctx).Where("name = ?", name).First(&channel).Error; err != nil {
    return nil, err
  }
  return &channel, nil
}

func (r *channelRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.Channel, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Channel
  if err := transaction.WithContext(ctx).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *channelRepo) SoftDelete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Where("id = ?", id).Delete(&types.Channel{}).Error
}
