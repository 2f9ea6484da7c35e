// maarif-assessment/internal/handlers/events_hub.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Для разработки разрешаем все источники
	},
}

// GlobalHub - единственный экземпляр хаба для всего приложения.
var GlobalHub = NewHub()

// Event - уведомление, рассылаемое открытым админским окнам:
// завершение импорта, переназначение работы и т.п.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
}

type Hub struct {
	clients    map[uint]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uint]*Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// Повторное подключение того же пользователя вытесняет старого
			// клиента: его канал закрывается, чтобы writePump завершился,
			// не дожидаясь ошибки на старом соединении.
			if old, ok := h.clients[client.userID]; ok && old != client {
				close(old.send)
			}
			h.clients[client.userID] = client
			h.mu.Unlock()
			slog.Info("Event client registered", "userID", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			// Вытесненный клиент при отключении не должен удалить запись
			// своего сменщика.
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
				close(client.send)
			}
			h.mu.Unlock()
			slog.Info("Event client unregistered", "userID", client.userID)

		case message := <-h.broadcast:
			h.mu.Lock()
			for userID, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает читать - отключаем его.
					close(client.send)
					delete(h.clients, userID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent рассылает событие всем подключенным клиентам.
func (h *Hub) BroadcastEvent(eventType string, payload interface{}) {
	data, err := json.Marshal(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		slog.Error("Не удалось сериализовать событие", "type", eventType, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		slog.Warn("Очередь рассылки событий переполнена, событие отброшено", "type", eventType)
	}
}

// EventsWSEndpoint подключает авторизованного пользователя к хабу событий.
func EventsWSEndpoint(c *gin.Context) {
	userIDValue, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Пользователь не авторизован"})
		return
	}
	userID, ok := userIDValue.(uint)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Некорректный ID пользователя в контексте"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Не удалось обновить соединение до WebSocket", "error", err)
		return
	}

	client := &Client{
		hub:    GlobalHub,
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: userID,
	}
	GlobalHub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump только следит за закрытием соединения: клиенты событий
// ничего не присылают.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
