package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/types"
)

type TranscriptRepo interface {
  Create(ctx context.Context, tx *gorm.DB, transcript *types.Transcript) (*types.Transcript, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Transcript, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Transcript, error)
  GetByUserAndVideoID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, youtubeVideoID string) (*types.Transcript, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Transcript, error)
  ListByChannel(ctx context.Context, tx *gorm.DB, channelID uuid.UUID) ([]*types.Transcript, error)
  Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type transcriptRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewTranscriptRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptRepo {
  repoLog := baseLog.With("repo", "TranscriptRepo")
  return &transcriptRepo{db: db, log: repoLog}
}

func (r *transcriptRepo) Create(ctx context.Context, tx *gorm.DB, transcript *types.Transcript) (*types.Transcript, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if err := transaction.WithContext(ctx).Create(transcript).Error; err != nil {
    return nil, err
  }
  return transcript, nil
}

func (r *transcriptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Transcript, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var transcript types.Transcript
  if err := transaction.WithContext(ctx).Where("id = ?", id).First(&transcript).Error; err != nil {
    return nil, err
  }
  return &transcript, nil
}

func (r *transcriptRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Transcript, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Transcript
  if len(ids) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *transcriptRepo) GetByUserAndVideoID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, youtubeVideoID string) (*types.Transcript, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var transcript types.Transcript
  if err := transaction.WithContext(ctx).
    Where("user_id = ? AND youtube_video_id = ?", userID, youtubeVideoID).
    First(&transcript).Error; err != nil {
    return nil, err
  }
  return &transcript, nil
}

func (r *transcriptRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Transcript, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Transcript
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *transcriptRepo) ListByChannel(ctx context.Context, tx *gorm.DB, channelID uuid.UUID) ([]*types.Transcript, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Transcript
  if err := transaction.WithContext(ctx).
    Joins("JOIN channel_video ON channel_video.transcript_id = transcript.id").
    Where("channel_video.channel_id = ? AND channel_video.deleted_at IS NULL", channelID).
    Order("channel_video.added_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *transcriptRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Where("id = ?", id).Delete(&types.Transcript{}).Error
}
