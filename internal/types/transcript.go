package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

type Transcript struct {
  gorm.Model
  ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID          uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:uniq_transcript_user_video" json:"user_id"`
  User            *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  YoutubeVideoID  string          `gorm:"not null;column:youtube_video_id;uniqueIndex:uniq_transcript_user_video" json:"youtube_video_id"`
  Title           string          `gorm:"not null;column:title" json:"title"`
  ChannelName     string          `gorm:"column:channel_name" json:"channel_name"`
  Duration        int             `gorm:"column:duration" json:"duration"`
  TranscriptText  string          `gorm:"column:transcript_text;not null" json:"transcript_text"`
  Metadata        datatypes.JSON  `gorm:"type:jsonb;column:metadata" json:"metadata"`
  CreatedAt       time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt       time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Transcript) TableName() string {
  return "transcript"
}
