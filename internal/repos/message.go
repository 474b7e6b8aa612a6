package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/types"
)

type MessageRepo interface {
  Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error)
  ListByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]*types.Message, error)
  ListByChannelConversation(ctx context.Context, tx *gorm.DB, channelConversationID uuid.UUID) ([]*types.Message, error)
  ListRecentByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, limit int) ([]*types.Message, error)
  ListRecentByChannelConversation(ctx context.Context, tx *gorm.DB, channelConversationID uuid.UUID, limit int) ([]*types.Message, error)
  DeleteByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) error
  DeleteByChannelConversation(ctx context.Context, tx *gorm.DB, channelConversationID uuid.UUID) error
}

type messageRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
  repoLog := baseLog.With("repo", "MessageRepo")
  return &messageRepo{db: db, log: repoLog}
}

func (r *messageRepo) Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(messages) == 0 {
    return []*types.Message{}, nil
  }
  if err := transaction.WithContext(ctx).Create(messages).Error; err != nil {
    return nil, err
  }
  return messages, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Message
  if err := transaction.WithContext(ctx).
    Where("conversation_id = ?", conversationID).
    Order("created_at ASC, id ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *messageRepo) ListByChannelConversation(ctx context.Context, tx *gorm.DB, channelConversationID uuid.UUID) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Message
  if err := transaction.WithContext(ctx).
    Where("channel_conversation_id = ?", channelConversationID).
    Order("created_at ASC, id ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

// ListRecentByConversation returns the last limit messages in ascending
// created_at order, ready for prompt history.
func (r *messageRepo) ListRecentByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID, limit int) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Message
  if limit <= 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("conversation_id = ?", conversationID).
    Order("created_at DESC, id DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  reverseMessages(results)
  return results, nil
}

func (r *messageRepo) ListRecentByChannelConversation(ctx context.Context, tx *gorm.DB, channelConversationID uuid.UUID, limit int) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Message
  if limit <= 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("channel_conversation_id = ?", channelConversationID).
    Order("created_at DESC, id DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  reverseMessages(results)
  return results, nil
}

func (r *messageRepo) DeleteByConversation(ctx context.Context, tx *gorm.DB, conversationID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Unscoped().
    Where("conversation_id = ?", conversationID).
    Delete(&types.Message{}).Error
}

func (r *messageRepo) DeleteByChannelConversation(ctx context.Context, tx *gorm.DB, channelConversationID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Unscoped().
    Where("channel_conversation_id = ?", channelConversationID).
    Delete(&types.Message{}).Error
}

func reverseMessages(messages []*types.Message) {
  for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
    messages[i], messages[j] = messages[j], messages[i]
  }
}
