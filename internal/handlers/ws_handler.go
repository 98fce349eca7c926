package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"calendar-sync-api/internal/auth"
	"calendar-sync-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// wsClient implements realtime.Client on top of a websocket connection.
// All socket writes happen on writePump; Send only queues.
type wsClient struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues message without blocking. It reports false once the client is
// closed or when its buffer is full.
func (c *wsClient) Send(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- message:
		return true
	default:
		slog.Debug("websocket send buffer full, dropping message", "conn", c.id)
		return false
	}
}

func (c *wsClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				// reader loop will exit on the closed connection
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is handled at Gin level; allow upgrade from any origin here
		return true
	},
}

// WebSocketHandler upgrades the connection and feeds every frame to relay.
// The client declares its account with an "auth" message; no HTTP auth is required.
func WebSocketHandler(relay *realtime.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := newWSClient(conn)
		session := realtime.NewSession(client.id, client)
		slog.Info("websocket connected", "conn", client.id, "remote", c.ClientIP())

		go client.writePump()
		defer func() {
			relay.OnClose(session)
			client.Close()
		}()

		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
					slog.Debug("websocket read error", "conn", client.id, "error", err)
				}
				return
			}
			relay.OnMessage(session, message)
		}
	}
}

// VerifyRealtimeToken resolves a bearer token to the realtime identity of its user.
func VerifyRealtimeToken(token string) (realtime.Identity, error) {
	claims, err := auth.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return realtime.Identity(claims.AccountID()), nil
}
