package services

import (
  "context"
  "errors"
  "fmt"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/platform/apierr"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/platform/qdrant"
  "github.com/tubewise/tubewise-backend/internal/repos"
  "github.com/tubewise/tubewise-backend/internal/types"
)

type TranscriptService interface {
  List(ctx context.Context, userID uuid.UUID) ([]*types.Transcript, error)
  Get(ctx context.Context, userID, transcriptID uuid.UUID) (*types.Transcript, error)
  Delete(ctx context.Context, userID, transcriptID uuid.UUID) error
}

type transcriptService struct {
  db             *gorm.DB
  log            *logger.Logger
  vec            qdrant.VectorStore
  transcriptRepo repos.TranscriptRepo
  chunkRepo      repos.ChunkRepo

  globalCollection string
}

func NewTranscriptService(
  db *gorm.DB,
  log *logger.Logger,
  vec qdrant.VectorStore,
  transcriptRepo repos.TranscriptRepo,
  chunkRepo repos.ChunkRepo,
  globalCollection string,
) TranscriptService {
  serviceLog := log.With("service", "TranscriptService")
  return &transcriptService{
    db:               db,
    log:              serviceLog,
    vec:              vec,
    transcriptRepo:   transcriptRepo,
    chunkRepo:        chunkRepo,
    globalCollection: globalCollection,
  }
}

func (ts *transcriptService) List(ctx context.Context, userID uuid.UUID) ([]*types.Transcript, error) {
  results, err := ts.transcriptRepo.ListByUser(ctx, nil, userID)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("list transcripts: %w", err))
  }
  return results, nil
}

func (ts *transcriptService) Get(ctx context.Context, userID, transcriptID uuid.UUID) (*types.Transcript, error) {
  return ts.loadOwned(ctx, userID, transcriptID)
}

// Delete removes the transcript, every chunk row that references it
// (channel copies included), and its vectors in the user's global
// collection. Channel-collection vectors are dropped only when the channel
// itself is deleted.
func (ts *transcriptService) Delete(ctx context.Context, userID, transcriptID uuid.UUID) error {
  transcript, err := ts.loadOwned(ctx, userID, transcriptID)
  if err != nil {
    return err
  }
  filter := map[string]any{
    "user_id":          userID.String(),
    "youtube_video_id": transcript.YoutubeVideoID,
  }
  if err := ts.vec.DeleteByFilter(ctx, ts.globalCollection, filter); err != nil {
    return apierr.External(fmt.Errorf("delete transcript vectors: %w", err))
  }
  if err := ts.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if err := ts.chunkRepo.DeleteByTranscriptID(ctx, tx, transcript.ID); err != nil {
      return fmt.Errorf("delete chunks: %w", err)
    }
    if err := ts.transcriptRepo.Delete(ctx, tx, transcript.ID); err != nil {
      return fmt.Errorf("delete transcript: %w", err)
    }
    return nil
  }); err != nil {
    return apierr.Internal(err)
  }
  return nil
}

func (ts *transcriptService) loadOwned(ctx context.Context, userID, transcriptID uuid.UUID) (*types.Transcript, error) {
  transcript, err := ts.transcriptRepo.GetByID(ctx, nil, transcriptID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apierr.NotFound(fmt.Errorf("transcript %s not found", transcriptID))
    }
    return nil, apierr.Internal(fmt.Errorf("load transcript: %w", err))
  }
  if transcript.UserID != userID {
    return nil, apierr.Forbidden(fmt.Errorf("transcript %s belongs to another user", transcriptID))
  }
  return transcript, nil
}
