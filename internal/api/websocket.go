package api

import (
	"log"
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
		return true // CORS is enforced at the router; the stream is read-only
	},
}

// Hub maintains the set of active pattern-alert subscribers and broadcasts
// alert frames to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			// Write deadline keeps one blocked client from hanging the hub
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err := client.WriteMessage(websocket.TextMessage, message)
			if err != nil {
				log.Printf("Websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades the connection and registers it for alert frames.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	log.Printf("New alert subscriber connected. Total clients: %d", len(h.clients))

	// The stream is push-only, but we must read to notice disconnects.
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("Alert subscriber disconnected. Total clients: %d", len(h.clients))
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast queues an alert frame for all connected subscribers.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}
