package radio

import (
	"context"
	"errors"
	"fmt"
	"identityradio/backend/internal/config"
	"identityradio/backend/internal/models"
	"identityradio/backend/internal/storage"
	"log"
	"strings"

	"gorm.io/datatypes"
)

// PollService creates polls and records votes. The one-vote-per-voter rule
// is enforced here rather than trusted to the client.
type PollService struct {
	Storage storage.Storage
	Admins  AdminChecker
}

func NewPollService(s storage.Storage, admins AdminChecker) *PollService {
	return &PollService{Storage: s, Admins: admins}
}

// Active returns the single active poll, or nil when there is none.
func (p *PollService) Active(ctx context.Context) (*models.PollQuestion, error) {
	return p.Storage.GetActivePoll(ctx)
}

func (p *PollService) Get(ctx context.Context, id string) (*models.PollQuestion, error) {
	return p.Storage.GetPoll(ctx, id)
}

// Create replaces the active poll. Options are numbered 1..n with no votes.
func (p *PollService) Create(ctx context.Context, token, question string, options []string) (*models.PollQuestion, error) {
	adminID, err := requireAdmin(ctx, p.Admins, token)
	if err != nil {
		return nil, err
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, invalid("question is required")
	}
	texts := make([]string, 0, len(options))
	for _, o := range options {
		o = strings.TrimSpace(o)
		if o == "" {
			return nil, invalid("poll options must not be empty")
		}
		texts = append(texts, o)
	}
	if len(texts) < config.MinPollOptions || len(texts) > config.MaxPollOptions {
		return nil, invalid("a poll needs %d to %d options", config.MinPollOptions, config.MaxPollOptions)
	}

	poll := &models.PollQuestion{
		Question: question,
		Options:  datatypes.NewJSONType(models.NewPollOptions(texts)),
	}
	if err := p.Storage.CreatePoll(ctx, poll); err != nil {
		return nil, fmt.Errorf("create poll: %w", err)
	}
	log.Printf("INFO: Poll %s created by %s", poll.ID, adminID)
	return poll, nil
}

// Vote counts one vote of voterKey. A second vote from the same voter in the
// same poll fails with ErrAlreadyVoted.
func (p *PollService) Vote(ctx context.Context, pollID string, optionID int, voterKey string) (*models.PollQuestion, error) {
	if voterKey == "" {
		return nil, invalid("voter could not be identified")
	}

	poll, err := p.Storage.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.IsActive {
		return nil, invalid("%v", models.ErrPollClosed)
	}
	if !hasOption(poll, optionID) {
		return nil, invalid("%v", models.ErrUnknownOption)
	}

	first, err := p.Storage.MarkVoted(ctx, pollID, voterKey)
	if err != nil {
		return nil, fmt.Errorf("record voter: %w", err)
	}
	if !first {
		return nil, ErrAlreadyVoted
	}

	updated, err := p.Storage.VotePoll(ctx, pollID, optionID)
	if err != nil {
		p.Storage.UnmarkVoted(ctx, pollID, voterKey)
		if errors.Is(err, models.ErrUnknownOption) || errors.Is(err, models.ErrPollClosed) {
			return nil, invalid("%v", err)
		}
		return nil, fmt.Errorf("vote: %w", err)
	}
	return updated, nil
}

func hasOption(poll *models.PollQuestion, optionID int) bool {
	for _, o := range poll.Options.Data() {
		if o.ID == optionID {
			return true
		}
	}
	return false
}
