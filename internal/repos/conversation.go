package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/types"
)

type ConversationRepo interface {
  Create(ctx context.Context, tx *gorm.DB, conversation *types.Conversation) (*types.Conversation, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Conversation, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Conversation, int64, error)
  UpdateTitle(ctx context.Context, tx *gorm.DB, id uuid.UUID, title string) error
  TouchUpdatedAt(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
  Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type conversationRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
  repoLog := baseLog.With("repo", "ConversationRepo")
  return &conversationRepo{db: db, log: repoLog}
}

func (r *conversationRepo) Create(ctx context.Context, tx *gorm.DB, conversation *types.Conversation) (*types.Conversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if err := transaction.WithContext(ctx).Create(conversation).Error; err != nil {
    return nil, err
  }
  return conversation, nil
}

func (r *conversationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Conversation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var conversation types.Conversation
  if err := transaction.WithContext(ctx).Where("id = ?", id).First(&conversation).Error; err != nil {
    return nil, err
  }
  return &conversation, nil
}

func (r *conversationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit, offset int) ([]*types.Conversation, int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var total int64
  if err := transaction.WithContext(ctx).
    Model(&types.Conversation{}).
    Where("user_id = ?", userID).
    Count(&total).Error; err != nil {
    return nil, 0, err
  }
  var results []*types.Conversation
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("updated_at DESC").
    Limit(limit).
    Offset(offset).
    Find(&results).Error; err != nil {
    return nil, 0, err
  }
  return results, total, nil
}

func (r *conversationRepo) UpdateTitle(ctx context.Context, tx *gorm.DB, id uuid.UUID, title string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Model(&types.Conversation{}).
    Where("id = ?", id).
    Update("title", title).Error
}

func (r *conversationRepo) TouchUpdatedAt(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Model(&types.Conversation{}).
    Where("id = ?", id).
    Update("updated_at", at).Error
}

func (r *conversationRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&types.Conversation{}).Error
}
