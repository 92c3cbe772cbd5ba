// Package ws is the push side of the change feed: clients hold a websocket
// open and receive the envelopes that name them as recipients. One instance
// consumes the Kafka topic and relays over Redis pub/sub so users connected
// to other instances still get their events.
package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sable-im/sable/internal/events"
	"github.com/sable-im/sable/internal/hub"
	"github.com/sable-im/sable/internal/metrics"
)

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type Presence interface {
	Connect(ctx context.Context, userID, socketID string) error
	Heartbeat(ctx context.Context, userID string) error
	Disconnect(ctx context.Context, userID, socketID string) error
}

type Server struct {
	hub        *hub.Hub
	verifier   TokenVerifier
	presence   Presence
	redis      *redis.Client
	channel    string
	instanceID string
	log        *zap.SugaredLogger
}

func NewServer(verifier TokenVerifier, presence Presence, rdb *redis.Client, prefix string, log *zap.SugaredLogger) *Server {
	return &Server{
		hub:        hub.New(),
		verifier:   verifier,
		presence:   presence,
		redis:      rdb,
		channel:    prefix + ":fanout",
		instanceID: uuid.NewString(),
		log:        log,
	}
}

// Handler upgrades an authenticated client. The token travels in the query
// string because browsers cannot set headers on websocket dials.
func (s *Server) Handler() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		if token == "" {
			_ = conn.Close()
			return
		}
		userID, err := s.verifier.Verify(token)
		if err != nil {
			_ = conn.Close()
			return
		}

		client := &hub.Client{
			UserID:    userID,
			SocketID:  uuid.NewString(),
			Send:      make(chan []byte, 256),
			Connected: time.Now(),
		}
		s.hub.Add(client)
		metrics.WSConnections.Inc()
		ctx := context.Background()
		if err := s.presence.Connect(ctx, userID, client.SocketID); err != nil {
			s.log.Warnw("presence connect", "user", userID, "err", err)
		}

		c := newConnection(conn, client, s)
		go c.writePump()
		c.readPump()
	}
}

func (s *Server) dropClient(c *hub.Client) {
	s.hub.Remove(c)
	metrics.WSConnections.Dec()
	if err := s.presence.Disconnect(context.Background(), c.UserID, c.SocketID); err != nil {
		s.log.Warnw("presence disconnect", "user", c.UserID, "err", err)
	}
}

func (s *Server) heartbeat(userID string) {
	_ = s.presence.Heartbeat(context.Background(), userID)
}

// HandleEnvelope is the Kafka consumer callback: deliver locally, then relay
// for the other instances.
func (s *Server) HandleEnvelope(ev *events.Envelope) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.deliver(ev, b)
	relay := relayFrame{Origin: s.instanceID, Envelope: b}
	rb, _ := json.Marshal(relay)
	if err := s.redis.Publish(context.Background(), s.channel, rb).Err(); err != nil {
		s.log.Warnw("fanout relay", "err", err)
	}
}

type relayFrame struct {
	Origin   string          `json:"origin"`
	Envelope json.RawMessage `json:"envelope"`
}

// RunRelay subscribes to the cross-instance channel and delivers envelopes
// relayed by whichever instance consumed them from Kafka.
func (s *Server) RunRelay(ctx context.Context) {
	sub := s.redis.Subscribe(ctx, s.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame relayFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				continue
			}
			if frame.Origin == s.instanceID {
				continue // already delivered locally
			}
			var ev events.Envelope
			if err := json.Unmarshal(frame.Envelope, &ev); err != nil {
				continue
			}
			s.deliver(&ev, frame.Envelope)
		}
	}
}

func (s *Server) deliver(ev *events.Envelope, raw []byte) {
	seen := make(map[string]struct{}, len(ev.Recipients))
	for _, uid := range ev.Recipients {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		s.hub.SendToUser(uid, raw)
	}
}
