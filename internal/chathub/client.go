package chathub

import "identityradio/backend/internal/models"

// Client is one realtime listener of a single table. It abstracts the
// underlying connection so the hub can manage different client types
// uniformly.
type Client interface {
	// GetClientID returns the unique identifier of this connection.
	GetClientID() string
	// GetTable returns the table whose changes the client receives.
	GetTable() string

	// GetSendChannel returns the channel to which the ManagerService (hub)
	// sends events intended for this client.
	GetSendChannel() chan<- models.ChangeEvent

	// Subscribed is called by the hub once the table subscription is live,
	// before any event is sent.
	Subscribed()

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the client down. The hub calls it exactly once.
	Close()
}
