package services

import (
  "context"
  "errors"
  "fmt"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/platform/apierr"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/repos"
  "github.com/tubewise/tubewise-backend/internal/types"
)

type ChannelConversationService interface {
  List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.ChannelConversation, int64, error)
  GetOrCreate(ctx context.Context, userID, channelID uuid.UUID) (*types.ChannelConversation, error)
  GetDetail(ctx context.Context, userID, channelConversationID uuid.UUID) (*types.ChannelConversation, []*types.Message, error)
  Delete(ctx context.Context, userID, channelConversationID uuid.UUID) error
}

type channelConversationService struct {
  db                      *gorm.DB
  log                     *logger.Logger
  channelConversationRepo repos.ChannelConversationRepo
  channelRepo             repos.ChannelRepo
  messageRepo             repos.MessageRepo
}

func NewChannelConversationService(
  db *gorm.DB,
  log *logger.Logger,
  channelConversationRepo repos.ChannelConversationRepo,
  channelRepo repos.ChannelRepo,
  messageRepo repos.MessageRepo,
) ChannelConversationService {
  serviceLog := log.With("service", "ChannelConversationService")
  return &channelConversationService{
    db:                      db,
    log:                     serviceLog,
    channelConversationRepo: channelConversationRepo,
    channelRepo:             channelRepo,
    messageRepo:             messageRepo,
  }
}

func (cs *channelConversationService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.ChannelConversation, int64, error) {
  if limit <= 0 || limit > 100 {
    limit = 50
  }
  if offset < 0 {
    offset = 0
  }
  results, total, err := cs.channelConversationRepo.ListByUser(ctx, nil, userID, limit, offset)
  if err != nil {
    return nil, 0, apierr.Internal(fmt.Errorf("list channel conversations: %w", err))
  }
  return results, total, nil
}

// GetOrCreate resolves the user's single thread in the channel. The channel
// must exist and not be soft-deleted; the repo's read already excludes
// soft-deleted rows, so both cases surface as NOT_FOUND.
func (cs *channelConversationService) GetOrCreate(ctx context.Context, userID, channelID uuid.UUID) (*types.ChannelConversation, error) {
  if _, err := cs.channelRepo.GetByID(ctx, nil, channelID); err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apierr.NotFound(fmt.Errorf("channel %s not found", channelID))
    }
    return nil, apierr.Internal(fmt.Errorf("load channel: %w", err))
  }
  conversation, err := cs.channelConversationRepo.GetOrCreate(ctx, nil, userID, channelID)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("get or create channel conversation: %w", err))
  }
  return conversation, nil
}

func (cs *channelConversationService) GetDetail(ctx context.Context, userID, channelConversationID uuid.UUID) (*types.ChannelConversation, []*types.Message, error) {
  conversation, err := cs.loadOwned(ctx, userID, channelConversationID)
  if err != nil {
    return nil, nil, err
  }
  messages, err := cs.messageRepo.ListByChannelConversation(ctx, nil, conversation.ID)
  if err != nil {
    return nil, nil, apierr.Internal(fmt.Errorf("list channel conversation messages: %w", err))
  }
  return conversation, messages, nil
}

func (cs *channelConversationService) Delete(ctx context.Context, userID, channelConversationID uuid.UUID) error {
  conversation, err := cs.loadOwned(ctx, userID, channelConversationID)
  if err != nil {
    return err
  }
  if err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if err := cs.messageRepo.DeleteByChannelConversation(ctx, tx, conversation.ID); err != nil {
      return fmt.Errorf("delete channel conversation messages: %w", err)
    }
    if err := cs.channelConversationRepo.Delete(ctx, tx, conversation.ID); err != nil {
      return fmt.Errorf("delete channel conversation: %w", err)
    }
    return nil
  }); err != nil {
    return apierr.Internal(err)
  }
  return nil
}

func (cs *channelConversationService) loadOwned(ctx context.Context, userID, channelConversationID uuid.UUID) (*types.ChannelConversation, error) {
  conversation, err := cs.channelConversationRepo.GetByID(ctx, nil, channelConversationID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apierr.NotFound(fmt.Errorf("channel conversation %s not found", channelConversationID))
    }
    return nil, apierr.Internal(fmt.Errorf("load channel conversation: %w", err))
  }
  if conversation.UserID != userID {
    return nil, apierr.Forbidden(fmt.Errorf("channel conversation %s belongs to another user", channelConversationID))
  }
  return conversation, nil
}
