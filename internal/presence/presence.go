// Package presence keeps per-user online markers in Redis. The marker TTL is
// the disconnect safety net: a client that vanishes without a clean close
// stops heartbeating and the key expires, which readers treat as offline.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sable-im/sable/internal/metrics"
)

const Channel = "presence.changed"

type Marker struct {
	UserID   string    `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// Mirror is the relational-store side of a presence flip, so list queries
// can render status without Redis.
type Mirror interface {
	SetPresence(ctx context.Context, userID, status string, lastSeen time.Time) error
}

type Store struct {
	client *redis.Client
	mirror Mirror
	prefix string
	ttl    time.Duration
}

func NewStore(client *redis.Client, mirror Mirror, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, mirror: mirror, prefix: prefix, ttl: ttl}
}

func (s *Store) connKey(userID string) string {
	return fmt.Sprintf("%s:conn:%s", s.prefix, userID)
}

func (s *Store) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

// Connect registers a socket for the user and marks them online. The first
// socket triggers the mirrored write and a pub/sub notification.
func (s *Store) Connect(ctx context.Context, userID, socketID string) error {
	key := s.connKey(userID)
	added, err := s.client.SAdd(ctx, key, socketID).Result()
	if err != nil {
		return err
	}
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := s.setMarker(ctx, userID, "online", now); err != nil {
		return err
	}
	count, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return err
	}
	if added > 0 && count == added {
		// first socket for this user
		s.flip(ctx, userID, "online", now)
	}
	return nil
}

// Heartbeat refreshes the TTLs; the ws layer calls it on every client ping.
func (s *Store) Heartbeat(ctx context.Context, userID string) error {
	if err := s.client.Expire(ctx, s.connKey(userID), s.ttl).Err(); err != nil {
		return err
	}
	return s.setMarker(ctx, userID, "online", time.Now().UTC())
}

// Disconnect removes a socket; when it was the last one the user goes
// offline immediately rather than waiting for TTL expiry.
func (s *Store) Disconnect(ctx context.Context, userID, socketID string) error {
	key := s.connKey(userID)
	if err := s.client.SRem(ctx, key, socketID).Err(); err != nil {
		return err
	}
	count, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UTC()
	if err := s.setMarker(ctx, userID, "offline", now); err != nil {
		return err
	}
	s.flip(ctx, userID, "offline", now)
	return nil
}

// Get reports a user's presence. A missing key means the TTL fired, so the
// mirrored column is stale and the user is offline.
func (s *Store) Get(ctx context.Context, userID string) (*Marker, error) {
	b, err := s.client.Get(ctx, s.presenceKey(userID)).Bytes()
	if err == redis.Nil {
		return &Marker{UserID: userID, Status: "offline"}, nil
	}
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) setMarker(ctx context.Context, userID, status string, ts time.Time) error {
	m := Marker{UserID: userID, Status: status, LastSeen: ts}
	b, _ := json.Marshal(m)
	ttl := s.ttl
	if status == "offline" {
		ttl = 0
	}
	return s.client.Set(ctx, s.presenceKey(userID), b, ttl).Err()
}

// flip propagates a status transition: mirrored profile row plus pub/sub.
func (s *Store) flip(ctx context.Context, userID, status string, ts time.Time) {
	metrics.PresenceTransitions.WithLabelValues(status).Inc()
	if s.mirror != nil {
		_ = s.mirror.SetPresence(ctx, userID, status, ts)
	}
	m := Marker{UserID: userID, Status: status, LastSeen: ts}
	b, _ := json.Marshal(m)
	_ = s.client.Publish(ctx, s.prefix+":"+Channel, b).Err()
}
