package services

import (
  "context"
  "encoding/json"
  "fmt"
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/modules/chat/steps"
  "github.com/tubewise/tubewise-backend/internal/platform/apierr"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/repos"
  "github.com/tubewise/tubewise-backend/internal/types"
)

// CommitTurnInput is one finished turn, addressed to exactly one of the two
// conversation kinds.
type CommitTurnInput struct {
  ConversationID        *uuid.UUID
  ChannelConversationID *uuid.UUID
  UserContent           string
  AssistantContent      string
  AssistantMetadata     map[string]any
}

// TurnService persists a finished turn atomically: user message, assistant
// message, and the parent's updated_at bump commit together or not at all.
type TurnService interface {
  CommitTurn(ctx context.Context, in CommitTurnInput) (*types.Message, *types.Message, error)
  History(ctx context.Context, conversationID, channelConversationID *uuid.UUID, limit int) ([]steps.HistoryMessage, error)
}

type turnService struct {
  db                      *gorm.DB
  log                     *logger.Logger
  messageRepo             repos.MessageRepo
  conversationRepo        repos.ConversationRepo
  channelConversationRepo repos.ChannelConversationRepo
}

func NewTurnService(
  db *gorm.DB,
  log *logger.Logger,
  messageRepo repos.MessageRepo,
  conversationRepo repos.ConversationRepo,
  channelConversationRepo repos.ChannelConversationRepo,
) TurnService {
  serviceLog := log.With("service", "TurnService")
  return &turnService{
    db:                      db,
    log:                     serviceLog,
    messageRepo:             messageRepo,
    conversationRepo:        conversationRepo,
    channelConversationRepo: channelConversationRepo,
  }
}

func (ts *turnService) CommitTurn(ctx context.Context, in CommitTurnInput) (*types.Message, *types.Message, error) {
  if (in.ConversationID == nil) == (in.ChannelConversationID == nil) {
    return nil, nil, apierr.Internal(fmt.Errorf("turn must target exactly one conversation kind"))
  }

  var metadataJSON datatypes.JSON
  if in.AssistantMetadata != nil {
    raw, err := json.Marshal(in.AssistantMetadata)
    if err != nil {
      return nil, nil, apierr.Internal(fmt.Errorf("marshal turn metadata: %w", err))
    }
    metadataJSON = datatypes.JSON(raw)
  }

  // Both messages commit in one transaction and would otherwise share a
  // created_at; the explicit microsecond skew keeps the user message first.
  now := time.Now().UTC()
  userMsg := &types.Message{
    ID:                    uuid.New(),
    ConversationID:        in.ConversationID,
    ChannelConversationID: in.ChannelConversationID,
    Role:                  types.MessageRoleUser,
    Content:               in.UserContent,
    CreatedAt:             now,
  }
  assistantMsg := &types.Message{
    ID:                    uuid.New(),
    ConversationID:        in.ConversationID,
    ChannelConversationID: in.ChannelConversationID,
    Role:                  types.MessageRoleAssistant,
    Content:               in.AssistantContent,
    Metadata:              metadataJSON,
    CreatedAt:             now.Add(time.Microsecond),
  }

  if err := ts.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := ts.messageRepo.Create(ctx, tx, []*types.Message{userMsg, assistantMsg}); err != nil {
      return fmt.Errorf("create turn messages: %w", err)
    }
    if in.ConversationID != nil {
      if err := ts.conversationRepo.TouchUpdatedAt(ctx, tx, *in.ConversationID, now); err != nil {
        return fmt.Errorf("bump conversation updated_at: %w", err)
      }
    } else {
      if err := ts.channelConversationRepo.TouchUpdatedAt(ctx, tx, *in.ChannelConversationID, now); err != nil {
        return fmt.Errorf("bump channel conversation updated_at: %w", err)
      }
    }
    return nil
  }); err != nil {
    return nil, nil, apierr.Internal(err)
  }
  return userMsg, assistantMsg, nil
}

// History returns the last limit messages as prompt history, oldest first.
func (ts *turnService) History(ctx context.Context, conversationID, channelConversationID *uuid.UUID, limit int) ([]steps.HistoryMessage, error) {
  var (
    messages []*types.Message
    err      error
  )
  switch {
  case conversationID != nil:
    messages, err = ts.messageRepo.ListRecentByConversation(ctx, nil, *conversationID, limit)
  case channelConversationID != nil:
    messages, err = ts.messageRepo.ListRecentByChannelConversation(ctx, nil, *channelConversationID, limit)
  default:
    return nil, apierr.Internal(fmt.Errorf("history requires a conversation id"))
  }
  if err != nil {
    return nil, apierr.Internal(fmt.Errorf("load history: %w", err))
  }

  history := make([]steps.HistoryMessage, 0, len(messages))
  for _, m := range messages {
    history = append(history, steps.HistoryMessage{Role: m.Role, Content: m.Content})
  }
  return history, nil
}
