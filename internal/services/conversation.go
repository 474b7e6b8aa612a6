package services

import (
  "context"
  "errors"
  "fmt"
  "strings"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/platform/apierr"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/repos"
  "github.com/tubewise/tubewise-backend/internal/types"
)

const maxTitleChars = 200

type ConversationService interface {
  List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Conversation, int64, error)
  GetOrCreate(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) (*types.Conversation, error)
  GetDetail(ctx context.Context, userID, conversationID uuid.UUID) (*types.Conversation, []*types.Message, error)
  UpdateTitle(ctx context.Context, userID, conversationID uuid.UUID, title string) (*types.Conversation, error)
  Delete(ctx context.Context, userID, conversationID uuid.UUID) error
}

type conversationService struct {
  db               *gorm.DB
  log              *logger.Logger
  conversationRepo repos.ConversationRepo
  messageRepo      repos.MessageRepo
}

func NewConversationService(
  db *gorm.DB,
  log *logger.Logger,
  conversationRepo repos.ConversationRepo,
  messageRepo repos.MessageRepo,
) ConversationService {
  serviceLog := log.With("service", "ConversationService")
  return &conversationService{
    db:               db,
    log:              serviceLog,
    conversationRepo: conversationRepo,
    messageRepo:      messageRepo,
  }
}

// DefaultConversationTitle is the title given to conversations created
// implicitly by the first turn. UTC so two devices agree on it.
func DefaultConversationTitle(now time.Time) string {
  return "Chat " + now.UTC().Format("2006-01-02 15:04")
}

func (cs *conversationService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*types.Conversation, int64, error) {
  if limit <= 0 || limit > 100 {
    limit = 50
  }
  if offset < 0 {
    offset = 0
  }
  results, total, err := cs.conversationRepo.ListByUser(ctx, nil, userID, limit, offset)
  if err != nil {
    return nil, 0, apierr.Internal(fmt.Errorf("list conversations: %w", err))
  }
  return results, total, nil
}

func (cs *conversationService) GetOrCreate(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) (*types.Conversation, error) {
  if conversationID != nil && *conversationID != uuid.Nil {
    return cs.loadOwned(ctx, userID, *conversationID)
  }
  fresh := &types.Conversation{
    ID:     uuid.New(),
    UserID: userID,
    Title:  DefaultConversationTitle(time.Now()),
  }
  created, err := cs.conversationRepo.Create(ctx, nil, fresh)
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("create conversation: %w", err))
  }
  return created, nil
}

func (cs *conversationService) GetDetail(ctx context.Context, userID, conversationID uuid.UUID) (*types.Conversation, []*types.Message, error) {
  conversation, err := cs.loadOwned(ctx, userID, conversationID)
  if err != nil {
    return nil, nil, err
  }
  messages, err := cs.messageRepo.ListByConversation(ctx, nil, conversation.ID)
  if err != nil {
    return nil, nil, apierr.Internal(fmt.Errorf("list conversation messages: %w", err))
  }
  return conversation, messages, nil
}

func (cs *conversationService) UpdateTitle(ctx context.Context, userID, conversationID uuid.UUID, title string) (*types.Conversation, error) {
  trimmed := strings.TrimSpace(title)
  if trimmed == "" {
    return nil, apierr.InvalidInput(fmt.Errorf("title must not be empty"))
  }
  if len([]rune(trimmed)) > maxTitleChars {
    return nil, apierr.InvalidInput(fmt.Errorf("title exceeds %d characters", maxTitleChars))
  }
  conversation, err := cs.loadOwned(ctx, userID, conversationID)
  if err != nil {
    return nil, err
  }
  if err := cs.conversationRepo.UpdateTitle(ctx, nil, conversation.ID, trimmed); err != nil {
    return nil, apierr.Internal(fmt.Errorf("update conversation title: %w", err))
  }
  conversation.Title = trimmed
  return conversation, nil
}

func (cs *conversationService) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
  conversation, err := cs.loadOwned(ctx, userID, conversationID)
  if err != nil {
    return err
  }
  if err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if err := cs.messageRepo.DeleteByConversation(ctx, tx, conversation.ID); err != nil {
      return fmt.Errorf("delete conversation messages: %w", err)
    }
    if err := cs.conversationRepo.Delete(ctx, tx, conversation.ID); err != nil {
      return fmt.Errorf("delete conversation: %w", err)
    }
    return nil
  }); err != nil {
    return apierr.Internal(err)
  }
  return nil
}

// loadOwned resolves id to a conversation the user owns. Missing rows map to
// NOT_FOUND, rows owned by someone else to FORBIDDEN.
func (cs *conversationService) loadOwned(ctx context.Context, userID, conversationID uuid.UUID) (*types.Conversation, error) {
  conversation, err := cs.conversationRepo.GetByID(ctx, nil, conversationID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apierr.NotFound(fmt.Errorf("conversation %s not found", conversationID))
    }
    return nil, apierr.Internal(fmt.Errorf("load conversation: %w", err))
  }
  if conversation.UserID != userID {
    return nil, apierr.Forbidden(fmt.Errorf("conversation %s belongs to another user", conversationID))
  }
  return conversation, nil
}
