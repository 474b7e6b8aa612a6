package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/types"
)

type ChannelConversationRepo interface {
  GetOrCreate(ctx context.Context, tx *gorm.DB, userID, channelID uuid.UUID) (*types.ChannelConversation, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChannelConversation, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.ChannelConversation, int64, error)
  TouchUpdatedAt(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
  Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type channelConversationRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChannelConversationRepo(db *gorm.DB, baseLog *logger.Logger) ChannelConversationRepo {
  repoLog := baseLog.With("repo", "ChannelConversationRepo")
  return &channelConversationRepo{db: db, log: repoLog}
}

// GetOrCreate is the select-or-insert primitive under the (user_id, channel_id)
// uniqueness constraint. A concurrent insert loses the conflict and falls
// through to the re-select.
func (r *channelConversationRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, userID, channelID uuid.UUID) (*types.ChannelConversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var existing types.ChannelConversation
  err := transaction.WithContext(ctx).
    Where("user_id = ? AND channel_id = ?", userID, channelID).
    First(&existing).Error
  if err == nil {
    return &existing, nil
  }
  if err != gorm.ErrRecordNotFound {
    return nil, err
  }

  fresh := &types.ChannelConversation{ID: uuid.New(), UserID: userID, ChannelID: channelID}
  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel_id"}},
      DoNothing: true,
    }).
    Create(fresh).Error; err != nil {
    return nil, err
  }

  var row types.ChannelConversation
  if err := transaction.WithContext(ctx).
    Where("user_id = ? AND channel_id = ?", userID, channelID).
    First(&row).Error; err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *channelConversationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ChannelConversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var conversation types.ChannelConversation
  if err := transaction.WithContext(ctx).Where("id = ?", id).First(&conversation).Error; err != nil {
    return nil, err
  }
  return &conversation, nil
}

func (r *channelConversationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.ChannelConversation, int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var total int64
  if err := transaction.WithContext(ctx).
    Model(&types.ChannelConversation{}).
    Where("user_id = ?", userID).
    Count(&total).Error; err != nil {
    return nil, 0, err
  }
  var results []*types.ChannelConversation
  if err := transaction.WithContext(ctx).
    Preload("Channel").
    Where("user_id = ?", userID).
    Order("updated_at DESC").
    Limit(limit).
    Offset(offset).
    Find(&results).Error; err != nil {
    return nil, 0, err
  }
  return results, total, nil
}

func (r *channelConversationRepo) TouchUpdatedAt(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Model(&types.ChannelConversation{}).
    Where("id = ?", id).
    Update("updated_at", at).Error
}

func (r *channelConversationRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&types.ChannelConversation{}).Error
}
