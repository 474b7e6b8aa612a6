package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

// ChannelConversation is the single thread a user holds inside one channel.
// (user_id, channel_id) is unique; creation is select-or-insert.
type ChannelConversation struct {
  gorm.Model
  ID         uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID     uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:uniq_channel_conversation" json:"user_id"`
  User       *User       `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  ChannelID  uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:uniq_channel_conversation" json:"channel_id"`
  Channel    *Channel    `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChannelID;references:ID" json:"channel,omitempty"`
  CreatedAt  time.Time   `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt  time.Time   `gorm:"not null;default:now();index" json:"updated_at"`
}

func (ChannelConversation) TableName() string {
  return "channel_conversation"
}
