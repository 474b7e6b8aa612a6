package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

type Chunk struct {
  gorm.Model
  ID            uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  TranscriptID  uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:uniq_chunk_transcript_index" json:"transcript_id"`
  Transcript    *Transcript     `gorm:"constraint:OnDelete:CASCADE;foreignKey:TranscriptID;references:ID" json:"transcript,omitempty"`
  UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
  ChannelID     *uuid.UUID      `gorm:"type:uuid;index" json:"channel_id,omitempty"`
  ChunkIndex    int             `gorm:"column:chunk_index;not null;uniqueIndex:uniq_chunk_transcript_index" json:"chunk_index"`
  ChunkText     string          `gorm:"column:chunk_text;not null" json:"chunk_text"`
  TokenCount    int             `gorm:"column:token_count" json:"token_count"`
  Metadata      datatypes.JSON  `gorm:"type:jsonb;column:metadata" json:"metadata"`
  CreatedAt     time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt     time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Chunk) TableName() string {
  return "chunk"
}
