package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

type ChannelVideo struct {
  gorm.Model
  ID            uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  ChannelID     uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:uniq_channel_video" json:"channel_id"`
  Channel       *Channel    `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChannelID;references:ID" json:"channel,omitempty"`
  TranscriptID  uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:uniq_channel_video" json:"transcript_id"`
  Transcript    *Transcript `gorm:"constraint:OnDelete:CASCADE;foreignKey:TranscriptID;references:ID" json:"transcript,omitempty"`
  AddedBy       uuid.UUID   `gorm:"type:uuid;not null" json:"added_by"`
  AddedAt       time.Time   `gorm:"not null;default:now();column:added_at" json:"added_at"`
}

func (ChannelVideo) TableName() string {
  return "channel_video"
}
