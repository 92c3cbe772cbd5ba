// Package profile covers the profile view: display name, bio, avatar.
package profile

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sable-im/sable/internal/apperr"
	"github.com/sable-im/sable/internal/events"
	"github.com/sable-im/sable/internal/store"
)

type Repo interface {
	Get(ctx context.Context, id string) (*store.Profile, error)
	Update(ctx context.Context, id string, fields bson.M) (*store.Profile, error)
}

type MediaResolver interface {
	Get(ctx context.Context, id string) (*store.Media, error)
	DownloadURL(ctx context.Context, userID, id string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev *events.Envelope)
}

type Service struct {
	repo  Repo
	media MediaResolver
	pub   Publisher
}

func NewService(repo Repo, media MediaResolver, pub Publisher) *Service {
	return &Service{repo: repo, media: media, pub: pub}
}

func (s *Service) Get(ctx context.Context, id string) (*store.Profile, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Update edits display name and bio. Empty inputs leave the field alone; a
// bio of "-" clears it.
func (s *Service) Update(ctx context.Context, userID, displayName, bio string) (*store.Profile, error) {
	fields := bson.M{}
	if v := strings.TrimSpace(displayName); v != "" {
		fields["display_name"] = v
	}
	if bio == "-" {
		fields["bio"] = ""
	} else if v := strings.TrimSpace(bio); v != "" {
		fields["bio"] = v
	}
	if len(fields) == 0 {
		return nil, apperr.ErrBadRequest
	}
	p, err := s.repo.Update(ctx, userID, fields)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	s.published(ctx, p)
	return p, nil
}

// SetAvatar points the profile at an uploaded media object the caller owns.
func (s *Service) SetAvatar(ctx context.Context, userID, mediaID string) (*store.Profile, error) {
	m, err := s.media.Get(ctx, mediaID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.ErrBadRequest
		}
		return nil, err
	}
	if m.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	if m.Type != "image" {
		return nil, apperr.ErrBadRequest
	}
	url, err := s.media.DownloadURL(ctx, userID, mediaID)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.Update(ctx, userID, bson.M{"avatar_url": url})
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	s.published(ctx, p)
	return p, nil
}

// published tells the user's other sessions about the change.
func (s *Service) published(ctx context.Context, p *store.Profile) {
	if s.pub == nil {
		return
	}
	if ev, err := events.NewEnvelope(events.TypeProfileUpdated, p.ID, []string{p.ID}, p); err == nil {
		s.pub.Publish(ctx, ev)
	}
}
