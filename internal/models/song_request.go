package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SongPending = "pending"
	SongPlayed  = "played"
)

// ErrInvalidTransition is returned when a song request is asked to move
// anywhere but pending -> played.
var ErrInvalidTransition = errors.New("song request already played")

// SongRequest is a listener's request for a track.
type SongRequest struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"type:text;not null" json:"title"`
	Artist      string     `gorm:"type:text;not null" json:"artist"`
	Status      string     `gorm:"type:text;not null;default:'pending';index" json:"status"`
	RequestedAt time.Time  `gorm:"index" json:"requested_at"`
	PlayedAt    *time.Time `json:"played_at,omitempty"`
}

func (s *SongRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = SongPending
	}
	if s.RequestedAt.IsZero() {
		s.RequestedAt = time.Now()
	}
	return
}

// MarkPlayed moves the request from pending to played. The transition is
// one-way.
func (s *SongRequest) MarkPlayed(now time.Time) error {
	if s.Status != SongPending {
		return ErrInvalidTransition
	}
	s.Status = SongPlayed
	s.PlayedAt = &now
	return nil
}
