package ws

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/sable-im/sable/internal/hub"
)

const (
	readLimit    = 64 * 1024
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

type connection struct {
	ws     *websocket.Conn
	client *hub.Client
	srv    *Server
}

func newConnection(conn *websocket.Conn, client *hub.Client, srv *Server) *connection {
	return &connection{ws: conn, client: client, srv: srv}
}

func (c *connection) readPump() {
	defer func() {
		c.srv.dropClient(c.client)
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.srv.heartbeat(c.client.UserID)
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var payload struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			continue
		}
		if payload.Type == "heartbeat" {
			c.srv.heartbeat(c.client.UserID)
		}
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.client.Send:
			if !ok {
				_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
