package gateway

import (
	"context"
	"errors"
	"identityradio/backend/internal/livesync"
	"identityradio/backend/internal/models"
	"net/http"
)

// Row sources for the listener's synchronizers.
var (
	_ livesync.Source[models.ChatMessage]  = MessageSource{}
	_ livesync.Source[models.SongRequest]  = SongRequestSource{}
	_ livesync.Source[models.PollQuestion] = ActivePollSource{}
)

func notFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

type MessageSource struct{ Client *Client }

func (s MessageSource) FetchAll(ctx context.Context) ([]models.ChatMessage, error) {
	return s.Client.ListMessages(ctx)
}

func (s MessageSource) FetchOne(ctx context.Context, id string) (models.ChatMessage, bool, error) {
	msg, err := s.Client.GetMessage(ctx, id)
	if notFound(err) {
		return models.ChatMessage{}, false, nil
	}
	if err != nil {
		return models.ChatMessage{}, false, err
	}
	return *msg, true, nil
}

type SongRequestSource struct{ Client *Client }

func (s SongRequestSource) FetchAll(ctx context.Context) ([]models.SongRequest, error) {
	return s.Client.ListSongRequests(ctx)
}

func (s SongRequestSource) FetchOne(ctx context.Context, id string) (models.SongRequest, bool, error) {
	req, err := s.Client.GetSongRequest(ctx, id)
	if notFound(err) {
		return models.SongRequest{}, false, nil
	}
	if err != nil {
		return models.SongRequest{}, false, err
	}
	return *req, true, nil
}

// ActivePollSource is meant for refetch mode: every change reloads the
// filtered set.
type ActivePollSource struct{ Client *Client }

func (s ActivePollSource) FetchAll(ctx context.Context) ([]models.PollQuestion, error) {
	return s.Client.ActivePoll(ctx)
}

func (s ActivePollSource) FetchOne(ctx context.Context, id string) (models.PollQuestion, bool, error) {
	return models.PollQuestion{}, false, errors.New("active poll is only fetched as a whole")
}
