package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

const (
  MessageRoleUser      = "user"
  MessageRoleAssistant = "assistant"
  MessageRoleSystem    = "system"
)

// Message belongs to exactly one of Conversation or ChannelConversation.
type Message struct {
  gorm.Model
  ID                     uuid.UUID             `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  ConversationID         *uuid.UUID            `gorm:"type:uuid;index" json:"conversation_id,omitempty"`
  Conversation           *Conversation         `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConversationID;references:ID" json:"conversation,omitempty"`
  ChannelConversationID  *uuid.UUID            `gorm:"type:uuid;index" json:"channel_conversation_id,omitempty"`
  ChannelConversation    *ChannelConversation  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChannelConversationID;references:ID" json:"channel_conversation,omitempty"`
  Role                   string                `gorm:"not null;column:role" json:"role"`
  Content                string                `gorm:"not null;column:content" json:"content"`
  Metadata               datatypes.JSON        `gorm:"type:jsonb;column:metadata" json:"metadata"`
  CreatedAt              time.Time             `gorm:"not null;default:now();index" json:"created_at"`
  UpdatedAt              time.Time             `gorm:"not null;default:now()" json:"updated_at"`
}

func (Message) TableName() string {
  return "message"
}
