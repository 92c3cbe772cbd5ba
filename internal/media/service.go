package media

import (
	"bytes"
	"context"
	"image"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/sable-im/sable/internal/apperr"
	"github.com/sable-im/sable/internal/metrics"
	"github.com/sable-im/sable/internal/store"
)

// ObjectStore is the slice of the S3 store the media service needs.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Repo interface {
	Insert(ctx context.Context, m *store.Media) error
	Get(ctx context.Context, id string) (*store.Media, error)
}

// Access reports whether a user can see an attachment they do not own,
// i.e. it was sent in a conversation they are part of.
type Access interface {
	Visible(ctx context.Context, userID, mediaID string) (bool, error)
}

type Service struct {
	repo       Repo
	objects    ObjectStore
	access     Access
	presignTTL time.Duration
}

func NewService(repo Repo, objects ObjectStore, access Access, presignTTL time.Duration) *Service {
	return &Service{repo: repo, objects: objects, access: access, presignTTL: presignTTL}
}

// Upload stores the file and its metadata row. Images additionally get a
// 320px thumbnail object next to the original.
func (s *Service) Upload(ctx context.Context, userID, filename, contentType string, data []byte) (*store.Media, error) {
	id := uuid.NewString()
	key := userID + "/" + id + "_" + filename

	url, err := s.objects.Upload(ctx, key, contentType, data)
	if err != nil {
		return nil, err
	}

	m := &store.Media{
		ID:          id,
		UserID:      userID,
		Key:         key,
		URL:         url,
		Type:        "file",
		FileName:    filename,
		Size:        int64(len(data)),
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}

	if strings.HasPrefix(contentType, "image/") {
		m.Type = "image"
		if thumb, err := Thumbnail(data); err == nil {
			thumbKey := key + "_thumb.jpg"
			if _, err := s.objects.Upload(ctx, thumbKey, "image/jpeg", thumb); err == nil {
				m.Thumbnail = thumbKey
			}
		}
	}

	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, err
	}
	metrics.MediaUploads.Inc()
	return m, nil
}

func (s *Service) Get(ctx context.Context, id string) (*store.Media, error) {
	return s.repo.Get(ctx, id)
}

// DownloadURL resolves an id to a fetchable URL for userID: the public one
// when the bucket is public, a presigned GET otherwise. Callers other than
// the owner must share a conversation carrying the attachment.
func (s *Service) DownloadURL(ctx context.Context, userID, id string) (string, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if m.UserID != userID {
		ok, err := s.access.Visible(ctx, userID, id)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", apperr.ErrForbidden
		}
	}
	if m.URL != "" {
		return m.URL, nil
	}
	return s.objects.PresignURL(ctx, m.Key, s.presignTTL)
}

// FileMeta derives the embedded attachment record for a message.
func FileMeta(m *store.Media) *store.FileMeta {
	return &store.FileMeta{
		ID:         m.ID,
		FileName:   m.FileName,
		FileType:   m.ContentType,
		FileSize:   m.Size,
		StorageKey: m.Key,
		URL:        m.URL,
	}
}

// Thumbnail renders a 320px-wide JPEG preserving aspect ratio.
func Thumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, 320, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
