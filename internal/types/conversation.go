package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

type Conversation struct {
  gorm.Model
  ID         uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
  User       *User       `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  Title      string      `gorm:"not null;column:title" json:"title"`
  CreatedAt  time.Time   `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt  time.Time   `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Conversation) TableName() string {
  return "conversation"
}
