// Package chat is the conversation layer: ordered history with attachments
// and sender profiles joined in, and the send/mark-read write path feeding
// the change feed.
package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sable-im/sable/internal/apperr"
	"github.com/sable-im/sable/internal/events"
	"github.com/sable-im/sable/internal/media"
	"github.com/sable-im/sable/internal/metrics"
	"github.com/sable-im/sable/internal/store"
)

type MessageRepo interface {
	Insert(ctx context.Context, m *store.Message) error
	ListConversation(ctx context.Context, a, b string, before time.Time, limit int64) ([]*store.Message, error)
	MarkRead(ctx context.Context, msgID, receiverID string) (*store.Message, error)
}

type GroupMessageRepo interface {
	Insert(ctx context.Context, m *store.GroupMessage) error
	List(ctx context.Context, groupID string, before time.Time, limit int64) ([]*store.GroupMessage, error)
}

type Membership interface {
	Member(ctx context.Context, groupID, userID string) (*store.GroupMember, error)
	Members(ctx context.Context, groupID string) ([]*store.GroupMember, error)
	SetLastRead(ctx context.Context, groupID, userID string, ts time.Time) error
}

type ProfileReader interface {
	Get(ctx context.Context, id string) (*store.Profile, error)
	GetMany(ctx context.Context, ids []string) (map[string]*store.Profile, error)
}

type MediaReader interface {
	Get(ctx context.Context, id string) (*store.Media, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev *events.Envelope)
}

type Service struct {
	messages MessageRepo
	groupMsg GroupMessageRepo
	members  Membership
	profiles ProfileReader
	media    MediaReader
	pub      Publisher
}

func NewService(messages MessageRepo, groupMsg GroupMessageRepo, members Membership, profiles ProfileReader, media MediaReader, pub Publisher) *Service {
	return &Service{
		messages: messages,
		groupMsg: groupMsg,
		members:  members,
		profiles: profiles,
		media:    media,
		pub:      pub,
	}
}

// MessageView joins the sender profile onto a direct message.
type MessageView struct {
	*store.Message
	Sender *store.Profile `json:"sender,omitempty"`
}

type GroupMessageView struct {
	*store.GroupMessage
	Sender *store.Profile `json:"sender,omitempty"`
}

// PairKey is the conversation id of a direct exchange; it is the same from
// both sides.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// SendDirect validates and stores a direct message. The sender is always the
// verified caller. mediaID, when set, must reference an upload owned by the
// sender and turns the message into a file message.
func (s *Service) SendDirect(ctx context.Context, senderID, receiverID, content, mediaID string) (*store.Message, error) {
	if receiverID == "" || receiverID == senderID {
		return nil, apperr.ErrBadRequest
	}
	if _, err := s.profiles.Get(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}

	msg := &store.Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		ReceiverID:  receiverID,
		MessageType: store.TypeText,
		Content:     strings.TrimSpace(content),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.attach(ctx, senderID, mediaID, &msg.MessageType, &msg.Content, &msg.File); err != nil {
		return nil, err
	}
	if msg.MessageType == store.TypeText && msg.Content == "" {
		return nil, apperr.ErrBadRequest
	}

	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues("direct").Inc()

	if ev, err := events.NewEnvelope(events.TypeMessageCreated, PairKey(senderID, receiverID),
		[]string{senderID, receiverID}, msg); err == nil {
		s.pub.Publish(ctx, ev)
	}
	return msg, nil
}

// DirectHistory returns messages between the caller and peer, newest first,
// with sender profiles joined.
func (s *Service) DirectHistory(ctx context.Context, userID, peerID string, before time.Time, limit int64) ([]*MessageView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if before.IsZero() {
		before = time.Now().UTC().Add(time.Second)
	}
	msgs, err := s.messages.ListConversation(ctx, userID, peerID, before, limit)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles.GetMany(ctx, []string{userID, peerID})
	if err != nil {
		return nil, err
	}
	out := make([]*MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, &MessageView{Message: m, Sender: profiles[m.SenderID]})
	}
	return out, nil
}

// MarkRead flips a message to read. Only the receiver may do this; the store
// filter makes anything else a no-match, surfaced as forbidden.
func (s *Service) MarkRead(ctx context.Context, userID, msgID string) error {
	msg, err := s.messages.MarkRead(ctx, msgID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return apperr.ErrForbidden
		}
		return err
	}
	if ev, err := events.NewEnvelope(events.TypeMessageRead, PairKey(msg.SenderID, msg.ReceiverID),
		[]string{msg.SenderID}, msg); err == nil {
		s.pub.Publish(ctx, ev)
	}
	return nil
}

// SendGroup stores a group message. Sends are membership-gated.
func (s *Service) SendGroup(ctx context.Context, senderID, groupID, content, mediaID string) (*store.GroupMessage, error) {
	if _, err := s.members.Member(ctx, groupID, senderID); err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.ErrForbidden
		}
		return nil, err
	}

	msg := &store.GroupMessage{
		ID:          uuid.NewString(),
		GroupID:     groupID,
		SenderID:    senderID,
		MessageType: store.TypeText,
		Content:     strings.TrimSpace(content),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.attach(ctx, senderID, mediaID, &msg.MessageType, &msg.Content, &msg.File); err != nil {
		return nil, err
	}
	if msg.MessageType == store.TypeText && msg.Content == "" {
		return nil, apperr.ErrBadRequest
	}

	if err := s.groupMsg.Insert(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues("group").Inc()

	// the sender's watermark advances to their own message
	_ = s.members.SetLastRead(ctx, groupID, senderID, msg.CreatedAt)

	recipients, err := s.memberIDs(ctx, groupID)
	if err == nil {
		if ev, err := events.NewEnvelope(events.TypeGroupMessageCreated, groupID, recipients, msg); err == nil {
			s.pub.Publish(ctx, ev)
		}
	}
	return msg, nil
}

// GroupHistory returns the group's messages, membership-gated, newest first.
func (s *Service) GroupHistory(ctx context.Context, userID, groupID string, before time.Time, limit int64) ([]*GroupMessageView, error) {
	if _, err := s.members.Member(ctx, groupID, userID); err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.ErrForbidden
		}
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if before.IsZero() {
		before = time.Now().UTC().Add(time.Second)
	}
	msgs, err := s.groupMsg.List(ctx, groupID, before, limit)
	if err != nil {
		return nil, err
	}

	senderIDs := make([]string, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.SenderID]; !dup {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	sort.Strings(senderIDs)
	profiles, err := s.profiles.GetMany(ctx, senderIDs)
	if err != nil {
		return nil, err
	}
	out := make([]*GroupMessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, &GroupMessageView{GroupMessage: m, Sender: profiles[m.SenderID]})
	}
	return out, nil
}

// MarkGroupRead advances the caller's read watermark. Idempotent; the store
// never moves the watermark backwards.
func (s *Service) MarkGroupRead(ctx context.Context, userID, groupID string, ts time.Time) error {
	if _, err := s.members.Member(ctx, groupID, userID); err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return apperr.ErrForbidden
		}
		return err
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return s.members.SetLastRead(ctx, groupID, userID, ts)
}

func (s *Service) attach(ctx context.Context, senderID, mediaID string, msgType, content *string, file **store.FileMeta) error {
	if mediaID == "" {
		return nil
	}
	m, err := s.media.Get(ctx, mediaID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return apperr.ErrBadRequest
		}
		return err
	}
	if m.UserID != senderID {
		return apperr.ErrForbidden
	}
	*msgType = store.TypeFile
	*file = media.FileMeta(m)
	if *content == "" {
		*content = m.FileName
	}
	return nil
}

func (s *Service) memberIDs(ctx context.Context, groupID string) ([]string, error) {
	members, err := s.members.Members(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}
