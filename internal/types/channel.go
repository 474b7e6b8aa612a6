package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

// Channel is an admin-curated shared corpus. Name and the derived vector
// collection name are immutable for the channel's lifetime, including across
// soft-delete and reactivate.
type Channel struct {
  gorm.Model
  ID                    uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Name                  string      `gorm:"uniqueIndex;not null;column:name" json:"name"`
  DisplayTitle          string      `gorm:"column:display_title" json:"display_title"`
  Description           string      `gorm:"column:description" json:"description"`
  QdrantCollectionName  string      `gorm:"not null;column:qdrant_collection_name" json:"qdrant_collection_name"`
  CreatedBy             uuid.UUID   `gorm:"type:uuid;not null;index" json:"created_by"`
  Creator               *User       `gorm:"foreignKey:CreatedBy;references:ID" json:"creator,omitempty"`
  CreatedAt             time.Time   `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt             time.Time   `gorm:"not null;default:now()" json:"updated_at"`
}

func (Channel) TableName() string {
  return "channel"
}
