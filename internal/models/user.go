package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the directory entry referenced by conversations, messages and calls.
// ID never changes once created; Name and Avatar are editable.
type User struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name         string `gorm:"size:120;not null" json:"name"`
	Email        string `gorm:"size:190;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:255" json:"-"`
	Avatar       string `gorm:"type:text" json:"avatar"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// UserSummary is the display projection embedded in realtime payloads.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}
