package models

import "time"

const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"

	// ChangeSubscribed is sent once on a realtime socket when the server
	// starts forwarding changes. It names no row.
	ChangeSubscribed = "SUBSCRIBED"
)

// Table names exposed through the change feed.
const (
	TableChatUsers     = "chat_users"
	TableChatMessages  = "chat_messages"
	TableSongRequests  = "song_requests"
	TablePollQuestions = "poll_questions"
	TableAdminUsers    = "admin_users"
)

// ChangeEvent is a row-level change notification. It carries only the row
// ID; subscribers refetch the row.
type ChangeEvent struct {
	Table string    `json:"table"`
	Type  string    `json:"type"`
	ID    string    `json:"id"`
	At    time.Time `json:"at"`
}
