package chathub

import (
	"encoding/json"
	"identityradio/backend/internal/models"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	ID    string
	Table string
	Conn  *websocket.Conn
	Hub   *ManagerService
	Send  chan models.ChangeEvent
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, table string) *WebSocketClient {
	return &WebSocketClient{
		ID:    uuid.New().String(),
		Table: table,
		Conn:  conn,
		Hub:   hub,
		Send:  make(chan models.ChangeEvent, sendBuffer),
	}
}

func (c *WebSocketClient) GetClientID() string                        { return c.ID }
func (c *WebSocketClient) GetTable() string                           { return c.Table }
func (c *WebSocketClient) GetSendChannel() chan<- models.ChangeEvent { return c.Send }

// Subscribed ставить у чергу підтвердження підписки; writePump відправить його першим.
func (c *WebSocketClient) Subscribed() {
	select {
	case c.Send <- models.ChangeEvent{Table: c.Table, Type: models.ChangeSubscribed, At: time.Now().UTC()}:
	default:
	}
}

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close закриває Send канал (що зупинить writePump)
func (c *WebSocketClient) Close() {
	close(c.Send)
}

// readPump only services control frames. Listeners never send data.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.Hub.UnregisterCh <- c:
		case <-c.Hub.Done():
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading from client %s: %v", c.ID, err)
			}
			return
		}
	}
}

// writePump читає події з каналу Send і записує їх у WebSocket, по одній на кадр.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито хабом, закриваємо з'єднання WS
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("Error encoding event for client %s: %v", c.ID, err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
