package types

import (
  "time"
  "gorm.io/gorm"
  "github.com/google/uuid"
)

const (
  RoleUser  = "user"
  RoleAdmin = "admin"
)

type User struct {
  gorm.Model
  ID            uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Email         string      `gorm:"uniqueIndex;not null;column:email" json:"email"`
  Password      string      `gorm:"not null;column:password" json:"-"`
  Role          string      `gorm:"not null;default:'user';column:role" json:"role"`
  CreatedAt     time.Time   `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt     time.Time   `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string {
  return "user"
}

func (u *User) IsAdmin() bool {
  return u != nil && u.Role == RoleAdmin
}
