package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/types"
)

type ChunkRepo interface {
  Create(ctx context.Context, tx *gorm.DB, chunks []*types.Chunk) ([]*types.Chunk, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Chunk, error)
  GetByTranscriptID(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID) ([]*types.Chunk, error)
  ListIDsByTranscriptID(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID) ([]uuid.UUID, error)
  ListIDsByChannelAndTranscript(ctx context.Context, tx *gorm.DB, channelID, transcriptID uuid.UUID) ([]uuid.UUID, error)
  DeleteByTranscriptID(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID) error
  DeleteByChannelID(ctx context.Context, tx *gorm.DB, channelID uuid.UUID) error
  DeleteByChannelAndTranscript(ctx context.Context, tx *gorm.DB, channelID, transcriptID uuid.UUID) error
}

type chunkRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
  repoLog := baseLog.With("repo", "ChunkRepo")
  return &chunkRepo{db: db, log: repoLog}
}

func (r *chunkRepo) Create(ctx context.Context, tx *gorm.DB, chunks []*types.Chunk) ([]*types.Chunk, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(chunks) == 0 {
    return []*types.Chunk{}, nil
  }

  // Keep batches small because ChunkText is large
  const batchSize = 100

  if err := transaction.WithContext(ctx).CreateInBatches(chunks, batchSize).Error; err != nil {
    return nil, err
  }
  return chunks, nil
}

func (r *chunkRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Chunk, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Chunk
  if len(ids) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *chunkRepo) GetByTranscriptID(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID) ([]*types.Chunk, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Chunk
  if err := transaction.WithContext(ctx).
    Where("transcript_id = ?", transcriptID).
    Order("chunk_index ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *chunkRepo) ListIDsByTranscriptID(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID) ([]uuid.UUID, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var ids []uuid.UUID
  if err := transaction.WithContext(ctx).
    Model(&types.Chunk{}).
    Where("transcript_id = ?", transcriptID).
    Pluck("id", &ids).Error; err != nil {
    return nil, err
  }
  return ids, nil
}

func (r *chunkRepo) ListIDsByChannelAndTranscript(ctx context.Context, tx *gorm.DB, channelID, transcriptID uuid.UUID) ([]uuid.UUID, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var ids []uuid.UUID
  if err := transaction.WithContext(ctx).
    Model(&types.Chunk{}).
    Where("channel_id = ? AND transcript_id = ?", channelID, transcriptID).
    Pluck("id", &ids).Error; err != nil {
    return nil, err
  }
  return ids, nil
}

func (r *chunkRepo) DeleteByTranscriptID(ctx context.Context, tx *gorm.DB, transcriptID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Where("transcript_id = ?", transcriptID).
    Delete(&types.Chunk{}).Error
}

func (r *chunkRepo) DeleteByChannelID(ctx context.Context, tx *gorm.DB, channelID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Where("channel_id = ?", channelID).
    Delete(&types.Chunk{}).Error
}

func (r *chunkRepo) DeleteByChannelAndTranscript(ctx context.Context, tx *gorm.DB, channelID, transcriptID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Where("channel_id = ? AND transcript_id = ?", channelID, transcriptID).
    Delete(&types.Chunk{}).Error
}
