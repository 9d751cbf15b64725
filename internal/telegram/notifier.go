package telegram

import (
	"context"
	"log"

	"identityradio/backend/internal/localization"
	"identityradio/backend/internal/metadata"
	"identityradio/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender sends a single Telegram message.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChannelNotifier posts "Now Playing" messages to a channel. NowPlaying never
// blocks: when a post is still pending the newer track replaces it.
type ChannelNotifier struct {
	Bot       Sender
	ChannelID int64
	Localizer *localization.Localizer
	Lang      string

	queue chan models.Track
}

var _ metadata.Notifier = (*ChannelNotifier)(nil)

func NewChannelNotifier(bot Sender, channelID int64, l *localization.Localizer, lang string) *ChannelNotifier {
	return &ChannelNotifier{
		Bot:       bot,
		ChannelID: channelID,
		Localizer: l,
		Lang:      lang,
		queue:     make(chan models.Track, 1),
	}
}

// NowPlaying queues t for posting.
func (n *ChannelNotifier) NowPlaying(t models.Track) {
	for {
		select {
		case n.queue <- t:
			return
		default:
		}
		// Витісняємо застарілий трек
		select {
		case <-n.queue:
		default:
		}
	}
}

// Run posts queued tracks until ctx is done.
func (n *ChannelNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-n.queue:
			text := n.Localizer.Get(n.Lang, "now_playing", t.Title, t.Artist)
			if _, err := n.Bot.Send(tgbotapi.NewMessage(n.ChannelID, text)); err != nil {
				log.Printf("ERROR: telegram channel post: %v", err)
			}
		}
	}
}
