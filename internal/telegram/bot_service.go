// Package telegram posts now-playing announcements to a channel and answers
// listener commands in private chats.
package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"

	"identityradio/backend/internal/localization"
	"identityradio/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the part of *tgbotapi.BotAPI the service uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// SongRequester creates song requests on behalf of bot users.
type SongRequester interface {
	Request(ctx context.Context, title, artist string) (*models.SongRequest, error)
}

// NowPlayingSource reports the last announced track.
type NowPlayingSource interface {
	Last() (models.Track, bool)
}

// BotService handles commands sent to the bot.
type BotService struct {
	BotAPI     BotAPI
	Songs      SongRequester
	NowPlaying NowPlayingSource
	Localizer  *localization.Localizer
	Lang       string
}

// NewBotService connects to Telegram with the given token.
func NewBotService(token string, songs SongRequester, np NowPlayingSource, l *localization.Localizer, lang string) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Printf("INFO: authorized on Telegram account %s", bot.Self.UserName)

	return &BotService{
		BotAPI:     bot,
		Songs:      songs,
		NowPlaying: np,
		Localizer:  l,
		Lang:       lang,
	}, nil
}

// Run is the main loop for receiving Telegram updates. It returns when ctx
// is done.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)
	defer s.BotAPI.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			s.handleCommand(ctx, update.Message)
		}
	}
}

func (s *BotService) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	lang := s.langFor(msg)

	var text string
	switch msg.Command() {
	case "start", "help":
		text = s.Localizer.Get(lang, "help")
	case "nowplaying":
		text = s.nowPlayingText(lang)
	case "request":
		text = s.handleRequest(ctx, lang, msg.CommandArguments())
	default:
		text = s.Localizer.Get(lang, "unknown_command")
	}

	s.reply(msg.Chat.ID, text)
}

func (s *BotService) nowPlayingText(lang string) string {
	t, ok := s.NowPlaying.Last()
	if !ok {
		return s.Localizer.Get(lang, "nothing_playing")
	}
	return s.Localizer.Get(lang, "now_playing", t.Title, t.Artist)
}

// handleRequest expects "Artist - Title".
func (s *BotService) handleRequest(ctx context.Context, lang, args string) string {
	artist, title, ok := strings.Cut(strings.TrimSpace(args), " - ")
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if !ok || artist == "" || title == "" {
		return s.Localizer.Get(lang, "request_usage")
	}

	req, err := s.Songs.Request(ctx, title, artist)
	if err != nil {
		log.Printf("ERROR: telegram song request: %v", err)
		return s.Localizer.Get(lang, "request_failed")
	}
	return s.Localizer.Get(lang, "request_created", req.Title, req.Artist)
}

// langFor prefers the sender's Telegram language when it is loaded.
func (s *BotService) langFor(msg *tgbotapi.Message) string {
	if msg.From != nil && msg.From.LanguageCode != "" {
		code := strings.ToLower(msg.From.LanguageCode)
		if i := strings.IndexByte(code, '-'); i > 0 {
			code = code[:i]
		}
		for _, l := range s.Localizer.Languages() {
			if l == code {
				return code
			}
		}
	}
	return s.Lang
}

func (s *BotService) reply(chatID int64, text string) {
	if _, err := s.BotAPI.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("ERROR: telegram send to %d: %v", chatID, err)
	}
}
