package storage

import (
	"context"
	"errors"
	"identityradio/backend/internal/models"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const voteKeyTTL = 30 * 24 * time.Hour

// GetActivePoll повертає nil, nil якщо активного опитування немає.
func (s *Service) GetActivePoll(ctx context.Context) (*models.PollQuestion, error) {
	var poll models.PollQuestion
	err := s.DB.WithContext(ctx).Where("is_active = ?", true).Order("created_at desc").First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to get active poll: %v", err)
		return nil, err
	}
	return &poll, nil
}

func (s *Service) GetPoll(ctx context.Context, id string) (*models.PollQuestion, error) {
	var poll models.PollQuestion
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

// CreatePoll deactivates every active poll and inserts the new active one in
// a single transaction, so at most one poll is active afterwards.
func (s *Service) CreatePoll(ctx context.Context, poll *models.PollQuestion) error {
	var deactivated []string
	poll.IsActive = true

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PollQuestion{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("is_active = ?", true).
			Pluck("id", &deactivated).Error; err != nil {
			return err
		}
		if len(deactivated) > 0 {
			if err := tx.Model(&models.PollQuestion{}).
				Where("id IN ?", deactivated).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(poll).Error
	})
	if err != nil {
		log.Printf("ERROR: Failed to create poll %q: %v", poll.Question, err)
		return err
	}

	for _, id := range deactivated {
		s.publish(ctx, models.TablePollQuestions, models.ChangeUpdate, id)
	}
	s.publish(ctx, models.TablePollQuestions, models.ChangeInsert, poll.ID)
	return nil
}

// VotePoll increments one option under a row lock and writes the whole
// options collection back. A poll that is no longer active fails with
// models.ErrPollClosed.
func (s *Service) VotePoll(ctx context.Context, pollID string, optionID int) (*models.PollQuestion, error) {
	var poll models.PollQuestion
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", pollID).First(&poll).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !poll.IsActive {
			return models.ErrPollClosed
		}
		if err := poll.Vote(optionID); err != nil {
			return err
		}
		return tx.Model(&models.PollQuestion{}).Where("id = ?", pollID).Update("options", poll.Options).Error
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, models.TablePollQuestions, models.ChangeUpdate, pollID)
	return &poll, nil
}

// MarkVoted records that voterKey voted in pollID. It returns false if the
// voter had already voted.
func (s *Service) MarkVoted(ctx context.Context, pollID, voterKey string) (bool, error) {
	key := "poll_vote:" + pollID + ":" + voterKey

	if s.Redis == nil {
		s.votesMu.Lock()
		defer s.votesMu.Unlock()
		if _, ok := s.votes[key]; ok {
			return false, nil
		}
		s.votes[key] = struct{}{}
		return true, nil
	}

	return s.Redis.SetNX(ctx, key, time.Now().Unix(), voteKeyTTL).Result()
}

// UnmarkVoted знімає позначку, якщо сам запис голосу не вдався.
func (s *Service) UnmarkVoted(ctx context.Context, pollID, voterKey string) {
	key := "poll_vote:" + pollID + ":" + voterKey
	if s.Redis == nil {
		s.votesMu.Lock()
		delete(s.votes, key)
		s.votesMu.Unlock()
		return
	}
	if err := s.Redis.Del(ctx, key).Err(); err != nil {
		log.Printf("WARN: Failed to clear vote marker %s: %v", key, err)
	}
}
