package handler

import (
	"identityradio/backend/internal/chathub"
	"identityradio/backend/internal/models"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Слухачі підключаються з будь-якого домену, як і до REST-маршрутів
	CheckOrigin: func(r *http.Request) bool { return true },
}

// realtimeTables are the tables listeners may follow.
var realtimeTables = map[string]bool{
	models.TableChatMessages:  true,
	models.TableSongRequests:  true,
	models.TablePollQuestions: true,
	models.TableChatUsers:     true,
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket і підписує клієнта на таблицю
func (h *Handler) ServeWebSocket(c *gin.Context) {
	table := c.Query("table")
	if !realtimeTables[table] {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown table"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade вже відповів клієнту
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, table)

	// Реєстрація клієнта в хабі до запуску pumps
	select {
	case h.Hub.RegisterCh <- client:
	case <-h.Hub.Done():
		conn.Close()
		return
	}
	client.Run()
}
