package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/types"
)

type ChannelVideoRepo interface {
  Add(ctx context.Context, tx *gorm.DB, video *types.ChannelVideo) (*types.ChannelVideo, error)
  GetByChannelAndTranscript(ctx context.Context, tx *gorm.DB, channelID, transcriptID uuid.UUID) (*types.ChannelVideo, error)
  ListByChannel(ctx context.Context, tx *gorm.DB, channelID uuid.UUID) ([]*types.ChannelVideo, error)
  CountByTranscript(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID) (int64, error)
  Remove(ctx context.Context, tx *gorm.DB, channelID, transcriptID uuid.UUID) error
}

type channelVideoRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChannelVideoRepo(db *gorm.DB, baseLog *logger.Logger) ChannelVideoRepo {
  repoLog := baseLog.With("repo", "ChannelVideoRepo")
  return &channelVideoRepo{db: db, log: repoLog}
}

func (r *channelVideoRepo) Add(ctx context.Context, tx *gorm.DB, video *types.ChannelVideo) (*types.ChannelVideo, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "channel_id"}, {Name: "transcript_id"}},
      DoNothing: true,
    }).
    Create(video).Error; err != nil {
    return nil, err
  }
  return video, nil
}

func (r *channelVideoRepo) GetByChannelAndTranscript(ctx context.Context, tx *gorm.DB, channelID, transcriptID uuid.UUID) (*types.ChannelVideo, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var video types.ChannelVideo
  if err := transaction.WithContext(ctx).
    Where("channel_id = ? AND transcript_id = ?", channelID, transcriptID).
    First(&video).Error; err != nil {
    return nil, err
  }
  return &video, nil
}

func (r *channelVideoRepo) ListByChannel(ctx context.Context, tx *gorm.DB, channelID uuid.UUID) ([]*types.ChannelVideo, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.ChannelVideo
  if err := transaction.WithContext(ctx).
    Where("channel_id = ?", channelID).
    Order("added_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *channelVideoRepo) CountByTranscript(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.ChannelVideo{}).
    Where("transcript_id = ?", transcriptID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}

func (r *channelVideoRepo) Remove(ctx context.Context, tx *gorm.DB, channelID, transcriptID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Where("channel_id = ? AND transcript_id = ?", channelID, transcriptID).
    Delete(&types.ChannelVideo{}).Error
}
