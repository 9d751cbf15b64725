package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ChatUser is a chat identity bound to the caller's IP address.
// Rows are created on first registration and never hard-deleted.
type ChatUser struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"type:text;not null" json:"username"`
	IPAddress string    `gorm:"type:text;index" json:"-"`
	Status    string    `gorm:"type:text;not null;default:'offline'" json:"status"`
	LastSeen  time.Time `json:"last_seen"`
	Country   string    `gorm:"type:text" json:"country,omitempty"`
}

// BeforeCreate генерує UUID, якщо ID ще не встановлено.
func (u *ChatUser) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Status == "" {
		u.Status = StatusOnline
	}
	if u.LastSeen.IsZero() {
		u.LastSeen = time.Now()
	}
	return
}

// AuthUser is an account that can log in. Only accounts with a matching
// AdminUser row are treated as administrators.
type AuthUser struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *AuthUser) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// AdminUser marks an AuthUser as administrator.
type AdminUser struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"uniqueIndex;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *AdminUser) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}
