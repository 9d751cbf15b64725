package radio

import (
	"context"
	"fmt"
	"identityradio/backend/internal/models"
	"identityradio/backend/internal/storage"
	"log"
	"strings"
	"time"
)

// SongService handles song requests. Anyone may request; only admins move a
// request to played or delete it.
type SongService struct {
	Storage storage.Storage
	Admins  AdminChecker
	Now     func() time.Time
}

func NewSongService(s storage.Storage, admins AdminChecker) *SongService {
	return &SongService{Storage: s, Admins: admins, Now: time.Now}
}

func (s *SongService) Request(ctx context.Context, title, artist string) (*models.SongRequest, error) {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)
	if title == "" || artist == "" {
		return nil, invalid("title and artist are required")
	}

	req := &models.SongRequest{Title: title, Artist: artist, Status: models.SongPending}
	if err := s.Storage.CreateSongRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("request song: %w", err)
	}
	return req, nil
}

func (s *SongService) List(ctx context.Context) ([]models.SongRequest, error) {
	return s.Storage.ListSongRequests(ctx)
}

func (s *SongService) Get(ctx context.Context, id string) (*models.SongRequest, error) {
	return s.Storage.GetSongRequest(ctx, id)
}

// MarkPlayed moves a pending request to played. Played requests stay played.
func (s *SongService) MarkPlayed(ctx context.Context, token, id string) (*models.SongRequest, error) {
	adminID, err := requireAdmin(ctx, s.Admins, token)
	if err != nil {
		return nil, err
	}

	req, err := s.Storage.MarkSongPlayed(ctx, id, s.Now().UTC())
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Song request %s marked played by %s", id, adminID)
	return req, nil
}

func (s *SongService) Delete(ctx context.Context, token, id string) error {
	adminID, err := requireAdmin(ctx, s.Admins, token)
	if err != nil {
		return err
	}
	if err := s.Storage.DeleteSongRequest(ctx, id); err != nil {
		return err
	}
	log.Printf("INFO: Song request %s deleted by %s", id, adminID)
	return nil
}
