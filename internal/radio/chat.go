package radio

import (
	"context"
	"errors"
	"fmt"
	"identityradio/backend/internal/complaint"
	"identityradio/backend/internal/config"
	"identityradio/backend/internal/models"
	"identityradio/backend/internal/storage"
	"strings"
	"unicode/utf8"
)

const defaultHistory = 100

// ChatService sends, lists and reports chat messages. Sending never returns
// the message into any local list: listeners see it through the change feed.
type ChatService struct {
	Storage    storage.Storage
	Complaints *complaint.Service
}

func NewChatService(s storage.Storage) *ChatService {
	return &ChatService{Storage: s, Complaints: complaint.NewService(s)}
}

// Send posts text as user. A nil user has not registered a username yet.
func (c *ChatService) Send(ctx context.Context, user *models.ChatUser, text string) (*models.ChatMessage, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: choose a username first", ErrForbidden)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("message is empty")
	}
	if utf8.RuneCountInString(text) > config.MaxMessageLength {
		return nil, invalid("message is longer than %d characters", config.MaxMessageLength)
	}

	msg := &models.ChatMessage{UserID: user.ID, Message: text}
	if err := c.Storage.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	msg.User = user
	return msg, nil
}

// History returns the latest visible messages in ascending order.
func (c *ChatService) History(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > defaultHistory {
		limit = defaultHistory
	}
	return c.Storage.ListMessages(ctx, limit)
}

// Message returns one visible message joined with its author.
func (c *ChatService) Message(ctx context.Context, id string) (*models.ChatMessage, error) {
	return c.Storage.GetMessage(ctx, id)
}

// Report files reporter's report against a message. It reports whether the
// message got hidden as a result.
func (c *ChatService) Report(ctx context.Context, reporter *models.ChatUser, messageID, reason string) (bool, error) {
	if reporter == nil {
		return false, fmt.Errorf("%w: choose a username first", ErrForbidden)
	}

	msg, err := c.Storage.GetMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	if msg.UserID == reporter.ID {
		return false, invalid("you cannot report your own message")
	}

	hidden, err := c.Complaints.HandleReport(ctx, &models.MessageReport{
		MessageID:  messageID,
		ReporterID: reporter.ID,
		Reason:     reason,
	})
	if errors.Is(err, complaint.ErrAlreadyReported) {
		return false, invalid("%v", err)
	}
	if err != nil {
		return false, fmt.Errorf("report message: %w", err)
	}
	return hidden, nil
}
