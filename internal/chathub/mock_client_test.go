package chathub_test

import (
	"identityradio/backend/internal/models"
	"sync/atomic"
)

type MockClient struct {
	id          string
	table       string
	RecvChannel chan models.ChangeEvent
	closed      atomic.Int32
	subscribed  atomic.Int32
}

func newMockClient(id, table string, buffer int) *MockClient {
	return &MockClient{
		id:          id,
		table:       table,
		RecvChannel: make(chan models.ChangeEvent, buffer),
	}
}

func (c *MockClient) GetClientID() string { return c.id }

func (c *MockClient) GetTable() string { return c.table }

func (c *MockClient) GetSendChannel() chan<- models.ChangeEvent {
	return c.RecvChannel
}

func (c *MockClient) Subscribed() {
	c.subscribed.Add(1)
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Add(1)
}
