package services

import (
  "context"
  "errors"
  "fmt"
  "regexp"
  "strings"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/platform/apierr"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/platform/qdrant"
  "github.com/tubewise/tubewise-backend/internal/repos"
  "github.com/tubewise/tubewise-backend/internal/types"
)

var channelNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

type ChannelService interface {
  Create(ctx context.Context, createdBy uuid.UUID, name, displayTitle, description string) (*types.Channel, error)
  List(ctx context.Context) ([]*types.Channel, error)
  Get(ctx context.Context, channelID uuid.UUID) (*types.Channel, error)
  AddVideo(ctx context.Context, channelID, transcriptID uuid.UUID, addedBy uuid.UUID) error
  RemoveVideo(ctx context.Context, channelID, transcriptID uuid.UUID) error
  Delete(ctx context.Context, channelID uuid.UUID) error
}

type channelService struct {
  db               *gorm.DB
  log              *logger.Logger
  vec              qdrant.VectorStore
  channelRepo      repos.ChannelRepo
  channelVideoRepo repos.ChannelVideoRepo
  transcriptRepo   repos.TranscriptRepo
  chunkRepo        repos.ChunkRepo
  ingestion        IngestionService

  globalCollection string
  embedDim         int
  deleteOrphans    bool
}

func NewChannelService(
  db *gorm.DB,
  log *logger.Logger,
  vec qdrant.VectorStore,
  channelRepo repos.ChannelRepo,
  channelVideoRepo repos.ChannelVideoRepo,
  transcriptRepo repos.TranscriptRepo,
  chunkRepo repos.ChunkRepo,
  ingestion IngestionService,
  globalCollection string,
  embedDim int,
  deleteOrphans bool,
) ChannelService {
  serviceLog := log.With("service", "ChannelService")
  return &channelService{
    db:               db,
    log:              serviceLog,
    vec:              vec,
    channelRepo:      channelRepo,
    channelVideoRepo: channelVideoRepo,
    transcriptRepo:   transcriptRepo,
    chunkRepo:        chunkRepo,
    ingestion:        ingestion,
    globalCollection: globalCollection,
    embedDim:         embedDim,
    deleteOrphans:    deleteOrphans,
  }
}

// CollectionNameForChannel derives the immutable vector collection name.
func CollectionNameForChannel(name string) string {
  return "channel_" + strings.ReplaceAll(name, "-", "_")
}

func (cs *channelService) Create(ctx context.Context, createdBy uuid.UUID, name, displayTitle, description string) (*types.Channel, error) {
  name = strings.ToLower(strings.TrimSpace(name))
  if !channelNamePattern.MatchString(name) {
    return nil, apierr.InvalidInput(fmt.Errorf("channel name %q must match %s", name, channelNamePattern.String()))
  }

  if _, err := cs.channelRepo.GetByName(ctx, nil, name); err == nil {
    return nil, apierr.InvalidInput(fmt.Errorf("channel name %q already taken", name))
  } else if !errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, apierr.Internal(fmt.Errorf("check channel name: %w", err))
  }

  collection := CollectionNameForChannel(name)
  if err := cs.vec.EnsureCollection(ctx, collection, cs.embedDim); err != nil {
    return nil, apierr.External(fmt.Errorf("ensure channel collection: %w", err))
  }
  if err := cs.vec.EnsurePayloadIndexes(ctx, collection, []string{"channel_id", "youtube_video_id"}); err != nil {
    return nil, apierr.External(fmt.Errorf("ensure channel payload indexes: %w", err))
  }

  channel := &types.Channel{
    ID:                   uuid.New(),
    Name:                 name,
    DisplayTitle:         strings.TrimSpace(displayTitle),
    Description:          strings.TrimSpace(description),
    QdrantCollectionName: collection,
    CreatedBy:            createdBy,
  }
  created, err := cs.channelRepo.Create(ctx, nil, channel)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("create channel: %w", err))
  }
  cs.log.Info("channel created", "channel", name, "collection", collection)
  return created, nil
}

func (cs *channelService) List(ctx context.Context) ([]*types.Channel, error) {
  channels, err := cs.channelRepo.List(ctx, nil)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("list channels: %w", err))
  }
  return channels, nil
}

func (cs *channelService) Get(ctx context.Context, channelID uuid.UUID) (*types.Channel, error) {
  return cs.loadActive(ctx, channelID)
}

func (cs *channelService) AddVideo(ctx context.Context, channelID, transcriptID uuid.UUID, addedBy uuid.UUID) error {
  channel, err := cs.loadActive(ctx, channelID)
  if err != nil {
    return err
  }
  transcript, err := cs.transcriptRepo.GetByID(ctx, nil, transcriptID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return apierr.NotFound(fmt.Errorf("transcript %s not found", transcriptID))
    }
    return apierr.Internal(fmt.Errorf("load transcript: %w", err))
  }

  // Already linked means already indexed; adding twice is a no-op.
  if _, err := cs.channelVideoRepo.GetByChannelAndTranscript(ctx, nil, channel.ID, transcript.ID); err == nil {
    return nil
  } else if !errors.Is(err, gorm.ErrRecordNotFound) {
    return apierr.Internal(fmt.Errorf("check channel video link: %w", err))
  }

  if _, err := cs.channelVideoRepo.Add(ctx, nil, &types.ChannelVideo{
    ID:           uuid.New(),
    ChannelID:    channel.ID,
    TranscriptID: transcript.ID,
    AddedBy:      addedBy,
  }); err != nil {
    return apierr.Internal(fmt.Errorf("link video to channel: %w", err))
  }
  if err := cs.ingestion.IndexTranscriptForChannel(ctx, channel, transcript); err != nil {
    return err
  }
  cs.log.Info("video added to channel",
    "channel", channel.Name,
    "youtube_video_id", transcript.YoutubeVideoID,
  )
  return nil
}

func (cs *channelService) RemoveVideo(ctx context.Context, channelID, transcriptID uuid.UUID) error {
  channel, err := cs.loadActive(ctx, channelID)
  if err != nil {
    return err
  }
  chunkIDs, err := cs.chunkRepo.ListIDsByChannelAndTranscript(ctx, nil, channel.ID, transcriptID)
  if err != nil {
    return apierr.Internal(fmt.Errorf("list channel chunk ids: %w", err))
  }
  if len(chunkIDs) > 0 {
    ids := make([]string, 0, len(chunkIDs))
    for _, id := range chunkIDs {
      ids = append(ids, id.String())
    }
    if err := cs.vec.Delete(ctx, channel.QdrantCollectionName, ids); err != nil {
      return apierr.External(fmt.Errorf("delete channel vectors: %w", err))
    }
  }
  if err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if err := cs.chunkRepo.DeleteByChannelAndTranscript(ctx, tx, channel.ID, transcriptID); err != nil {
      return fmt.Errorf("delete channel chunks: %w", err)
    }
    if err := cs.channelVideoRepo.Remove(ctx, tx, channel.ID, transcriptID); err != nil {
      return fmt.Errorf("unlink channel video: %w", err)
    }
    return nil
  }); err != nil {
    return apierr.Internal(err)
  }
  return nil
}

// Delete soft-deletes the channel and drops its vector collection. Member
// transcripts stay owned by their users unless the orphan policy says
// otherwise.
func (cs *channelService) Delete(ctx context.Context, channelID uuid.UUID) error {
  channel, err := cs.loadActive(ctx, channelID)
  if err != nil {
    return err
  }
  links, err := cs.channelVideoRepo.ListByChannel(ctx, nil, channel.ID)
  if err != nil {
    return apierr.Internal(fmt.Errorf("list channel videos: %w", err))
  }

  if err := cs.vec.DropCollection(ctx, channel.QdrantCollectionName); err != nil {
    return apierr.External(fmt.Errorf("drop channel collection: %w", err))
  }

  if err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if err := cs.chunkRepo.DeleteByChannelID(ctx, tx, channel.ID); err != nil {
      return fmt.Errorf("delete channel chunks: %w", err)
    }
    for _, link := range links {
      if err := cs.channelVideoRepo.Remove(ctx, tx, channel.ID, link.TranscriptID); err != nil {
        return fmt.Errorf("unlink channel video: %w", err)
      }
    }
    if err := cs.channelRepo.SoftDelete(ctx, tx, channel.ID); err != nil {
      return fmt.Errorf("soft delete channel: %w", err)
    }
    return nil
  }); err != nil {
    return apierr.Internal(err)
  }

  if cs.deleteOrphans {
    cs.removeOrphanedTranscripts(ctx, links)
  }
  cs.log.Info("channel deleted", "channel", channel.Name)
  return nil
}

// removeOrphanedTranscripts drops transcripts that no remaining channel
// references. Best-effort cleanup after the channel delete committed.
func (cs *channelService) removeOrphanedTranscripts(ctx context.Context, links []*types.ChannelVideo) {
  for _, link := range links {
    remaining, err := cs.channelVideoRepo.CountByTranscript(ctx, nil, link.TranscriptID)
    if err != nil {
      cs.log.Warn("orphan check failed", "transcript_id", link.TranscriptID.String(), "error", err)
      continue
    }
    if remaining > 0 {
      continue
    }
    chunkIDs, err := cs.chunkRepo.ListIDsByTranscriptID(ctx, nil, link.TranscriptID)
    if err == nil && len(chunkIDs) > 0 {
      ids := make([]string, 0, len(chunkIDs))
      for _, id := range chunkIDs {
        ids = append(ids, id.String())
      }
      if dErr := cs.vec.Delete(ctx, cs.globalCollection, ids); dErr != nil {
        cs.log.Warn("orphan vector cleanup failed", "transcript_id", link.TranscriptID.String(), "error", dErr)
      }
    }
    if err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
      if err := cs.chunkRepo.DeleteByTranscriptID(ctx, tx, link.TranscriptID); err != nil {
        return err
      }
      return cs.transcriptRepo.Delete(ctx, tx, link.TranscriptID)
    }); err != nil {
      cs.log.Warn("orphan transcript cleanup failed", "transcript_id", link.TranscriptID.String(), "error", err)
    }
  }
}

func (cs *channelService) loadActive(ctx context.Context, channelID uuid.UUID) (*types.Channel, error) {
  channel, err := cs.channelRepo.GetByID(ctx, nil, channelID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apierr.NotFound(fmt.Errorf("channel %s not found", channelID))
    }
    return nil, apierr.Internal(fmt.Errorf("load channel: %w", err))
  }
  return channel, nil
}
