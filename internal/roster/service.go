// Package roster builds the contact and group list views: one row per
// conversation, annotated with unread count and the most recent message,
// newest conversation first.
package roster

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sable-im/sable/internal/presence"
	"github.com/sable-im/sable/internal/store"
)

type MessageSummaries interface {
	Summaries(ctx context.Context, userID string) ([]*store.ContactSummary, error)
}

type GroupReader interface {
	ListForUser(ctx context.Context, userID string) ([]*store.Group, map[string]*store.GroupMember, error)
}

type GroupMessageReader interface {
	Last(ctx context.Context, groupID string) (*store.GroupMessage, error)
	CountSince(ctx context.Context, groupID, userID string, since time.Time) (int64, error)
}

type ProfileReader interface {
	GetMany(ctx context.Context, ids []string) (map[string]*store.Profile, error)
}

// PresenceReader overlays the live marker; the mirrored profile column can
// be stale after a TTL expiry.
type PresenceReader interface {
	Get(ctx context.Context, userID string) (*presence.Marker, error)
}

type Service struct {
	messages MessageSummaries
	groups   GroupReader
	groupMsg GroupMessageReader
	profiles ProfileReader
	presence PresenceReader
}

func NewService(messages MessageSummaries, groups GroupReader, groupMsg GroupMessageReader, profiles ProfileReader, pres PresenceReader) *Service {
	return &Service{
		messages: messages,
		groups:   groups,
		groupMsg: groupMsg,
		profiles: profiles,
		presence: pres,
	}
}

type ContactRow struct {
	Profile     *store.Profile `json:"profile"`
	Unread      int64          `json:"unread"`
	LastMessage *store.Message `json:"last_message,omitempty"`
}

type GroupRow struct {
	Group       *store.Group        `json:"group"`
	Role        string              `json:"role"`
	Unread      int64               `json:"unread"`
	LastMessage *store.GroupMessage `json:"last_message,omitempty"`
}

// Contacts lists every peer the user has exchanged messages with.
func (s *Service) Contacts(ctx context.Context, userID string) ([]*ContactRow, error) {
	sums, err := s.messages.Summaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(sums))
	for _, sum := range sums {
		ids = append(ids, sum.PeerID)
	}
	profiles, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*ContactRow, 0, len(sums))
	for _, sum := range sums {
		p := profiles[sum.PeerID]
		if p == nil {
			continue // peer row vanished; nothing to render
		}
		s.overlayPresence(ctx, p)
		out = append(out, &ContactRow{Profile: p, Unread: sum.Unread, LastMessage: sum.Last})
	}
	return out, nil
}

// Groups lists the user's groups with unread counts derived from the
// member's read watermark.
func (s *Service) Groups(ctx context.Context, userID string) ([]*GroupRow, error) {
	groups, memberships, err := s.groups.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*GroupRow, 0, len(groups))
	for _, g := range groups {
		m := memberships[g.ID]
		if m == nil {
			continue
		}
		row := &GroupRow{Group: g, Role: m.Role}
		last, err := s.groupMsg.Last(ctx, g.ID)
		if err != nil && !errors.Is(err, store.ErrNoDocument) {
			return nil, err
		}
		row.LastMessage = last
		unread, err := s.groupMsg.CountSince(ctx, g.ID, userID, m.LastReadAt)
		if err != nil {
			return nil, err
		}
		row.Unread = unread
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		return recency(out[i]).After(recency(out[j]))
	})
	return out, nil
}

func recency(r *GroupRow) time.Time {
	if r.LastMessage != nil {
		return r.LastMessage.CreatedAt
	}
	return r.Group.CreatedAt
}

func (s *Service) overlayPresence(ctx context.Context, p *store.Profile) {
	if s.presence == nil {
		return
	}
	m, err := s.presence.Get(ctx, p.ID)
	if err != nil {
		return // keep the mirrored value
	}
	p.OnlineStatus = m.Status
	if !m.LastSeen.IsZero() {
		p.LastSeen = m.LastSeen
	}
}
