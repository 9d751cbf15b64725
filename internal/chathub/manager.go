// Package chathub fans change-feed events out to websocket listeners. Each
// table with at least one listener holds exactly one feed subscription.
package chathub

import (
	"context"
	"identityradio/backend/internal/changefeed"
	"identityradio/backend/internal/models"
	"log"
)

// ManagerService is the hub. All of its state is owned by the Run loop.
type ManagerService struct {
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client

	Feed changefeed.Subscriber

	eventsCh chan models.ChangeEvent
	tables   map[string]*tableSubscription
	done     chan struct{}
}

type tableSubscription struct {
	sub     changefeed.Subscription
	clients map[string]Client
}

// NewManagerService creates a hub reading from feed.
func NewManagerService(feed changefeed.Subscriber) *ManagerService {
	return &ManagerService{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		Feed:         feed,
		eventsCh:     make(chan models.ChangeEvent, 256),
		tables:       make(map[string]*tableSubscription),
		done:         make(chan struct{}),
	}
}

// Run processes registrations and events until ctx is cancelled.
func (m *ManagerService) Run(ctx context.Context) {
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-m.RegisterCh:
			m.register(ctx, client)

		case client := <-m.UnregisterCh:
			m.unregister(client)

		case ev := <-m.eventsCh:
			m.broadcast(ev)
		}
	}
}

func (m *ManagerService) register(ctx context.Context, client Client) {
	table := client.GetTable()
	ts, ok := m.tables[table]
	if !ok {
		sub, err := m.subscribeTable(ctx, table)
		if err != nil {
			log.Printf("ERROR: Failed to subscribe to %s for client %s: %v", table, client.GetClientID(), err)
			client.Close()
			return
		}
		ts = &tableSubscription{sub: sub, clients: make(map[string]Client)}
		m.tables[table] = ts
	}

	ts.clients[client.GetClientID()] = client
	m.Clients[client.GetClientID()] = client
	client.Subscribed()
	log.Printf("INFO: Client %s listening to %s (%d on table)", client.GetClientID(), table, len(ts.clients))
}

func (m *ManagerService) unregister(client Client) {
	id := client.GetClientID()
	if _, ok := m.Clients[id]; !ok {
		return
	}
	delete(m.Clients, id)
	client.Close()

	table := client.GetTable()
	ts, ok := m.tables[table]
	if !ok {
		return
	}
	delete(ts.clients, id)
	if len(ts.clients) == 0 {
		if err := ts.sub.Close(); err != nil {
			log.Printf("WARN: Closing subscription to %s: %v", table, err)
		}
		delete(m.tables, table)
	}
}

func (m *ManagerService) broadcast(ev models.ChangeEvent) {
	ts, ok := m.tables[ev.Table]
	if !ok {
		return
	}
	for _, client := range ts.clients {
		select {
		case client.GetSendChannel() <- ev:
		default:
			// Повільний клієнт: відключаємо, щоб не блокувати інших
			log.Printf("WARN: Client %s is too slow, disconnecting", client.GetClientID())
			m.unregister(client)
		}
	}
}

// Done is closed once the hub has stopped.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

func (m *ManagerService) shutdown() {
	defer close(m.done)
	for _, client := range m.Clients {
		m.unregister(client)
	}
}
