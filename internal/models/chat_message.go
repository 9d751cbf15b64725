package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatMessage is a single message in the live chat. Messages are immutable
// once created; Hidden is only set by the report threshold.
type ChatMessage struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:text;not null;index" json:"user_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	Hidden    bool      `gorm:"not null;default:false" json:"hidden,omitempty"`

	// User is the joined author, loaded with Preload("User").
	User *ChatUser `gorm:"foreignKey:UserID" json:"chat_users,omitempty"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// AuthorName returns the author's username or a fallback for messages whose
// author row has not been joined.
func (m ChatMessage) AuthorName() string {
	if m.User == nil || m.User.Username == "" {
		return "Unknown User"
	}
	return m.User.Username
}

// ErrAlreadyReported is returned when a reporter reports the same message twice.
var ErrAlreadyReported = errors.New("message already reported")

// MessageReport is a viewer's report against a chat message.
type MessageReport struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	MessageID  string    `gorm:"type:text;not null;uniqueIndex:idx_report_once" json:"message_id"`
	ReporterID string    `gorm:"type:text;not null;uniqueIndex:idx_report_once" json:"reporter_id"`
	Reason     string    `gorm:"type:text;not null" json:"reason"`
	Weight     int       `gorm:"not null" json:"weight"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *MessageReport) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}
