// Package group is the administration surface: group CRUD, membership and
// roles. This layer is the only writer, so the last-admin guard lives here.
package group

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sable-im/sable/internal/apperr"
	"github.com/sable-im/sable/internal/events"
	"github.com/sable-im/sable/internal/store"
)

type Repo interface {
	Create(ctx context.Context, g *store.Group, creator *store.GroupMember) error
	Get(ctx context.Context, id string) (*store.Group, error)
	Update(ctx context.Context, id string, fields bson.M) (*store.Group, error)
	Delete(ctx context.Context, id string) error
	Member(ctx context.Context, groupID, userID string) (*store.GroupMember, error)
	Members(ctx context.Context, groupID string) ([]*store.GroupMember, error)
	AddMember(ctx context.Context, m *store.GroupMember) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	SetRole(ctx context.Context, groupID, userID, role string) error
	CountAdmins(ctx context.Context, groupID string) (int64, error)
}

type ProfileReader interface {
	Get(ctx context.Context, id string) (*store.Profile, error)
	GetMany(ctx context.Context, ids []string) (map[string]*store.Profile, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev *events.Envelope)
}

type Service struct {
	repo     Repo
	profiles ProfileReader
	pub      Publisher
}

func NewService(repo Repo, profiles ProfileReader, pub Publisher) *Service {
	return &Service{repo: repo, profiles: profiles, pub: pub}
}

// MemberView joins the profile onto a membership row.
type MemberView struct {
	*store.GroupMember
	Profile *store.Profile `json:"profile,omitempty"`
}

func (s *Service) Create(ctx context.Context, creatorID, name, description string) (*store.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.ErrBadRequest
	}
	g := &store.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   creatorID,
	}
	creator := &store.GroupMember{GroupID: g.ID, UserID: creatorID, Role: store.RoleAdmin}
	if err := s.repo.Create(ctx, g, creator); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) Get(ctx context.Context, userID, groupID string) (*store.Group, []*MemberView, error) {
	if _, err := s.member(ctx, groupID, userID); err != nil {
		return nil, nil, err
	}
	g, err := s.repo.Get(ctx, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, nil, apperr.ErrNotFound
		}
		return nil, nil, err
	}
	members, err := s.repo.Members(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	profiles, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	views := make([]*MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, &MemberView{GroupMember: m, Profile: profiles[m.UserID]})
	}
	return g, views, nil
}

// Update edits group metadata; admins only. Zero-valued fields are left
// untouched.
func (s *Service) Update(ctx context.Context, userID, groupID, name, description, avatarURL string) (*store.Group, error) {
	if err := s.requireAdmin(ctx, groupID, userID); err != nil {
		return nil, err
	}
	fields := bson.M{}
	if v := strings.TrimSpace(name); v != "" {
		fields["name"] = v
	}
	if v := strings.TrimSpace(description); v != "" {
		fields["description"] = v
	}
	if avatarURL != "" {
		fields["avatar_url"] = avatarURL
	}
	if len(fields) == 0 {
		return nil, apperr.ErrBadRequest
	}
	g, err := s.repo.Update(ctx, groupID, fields)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	s.notify(ctx, events.TypeGroupUpdated, groupID, g)
	return g, nil
}

func (s *Service) Delete(ctx context.Context, userID, groupID string) error {
	if err := s.requireAdmin(ctx, groupID, userID); err != nil {
		return err
	}
	recipients, _ := s.memberIDs(ctx, groupID)
	if err := s.repo.Delete(ctx, groupID); err != nil {
		return err
	}
	if ev, err := events.NewEnvelope(events.TypeGroupUpdated, groupID, recipients,
		map[string]string{"group_id": groupID, "deleted": "true"}); err == nil {
		s.pub.Publish(ctx, ev)
	}
	return nil
}

func (s *Service) AddMember(ctx context.Context, callerID, groupID, userID, role string) error {
	if err := s.requireAdmin(ctx, groupID, callerID); err != nil {
		return err
	}
	if role == "" {
		role = store.RoleMember
	}
	if role != store.RoleAdmin && role != store.RoleMember {
		return apperr.ErrBadRequest
	}
	if _, err := s.profiles.Get(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return apperr.ErrNotFound
		}
		return err
	}
	// re-adding an existing member updates the role, so it must not
	// demote the only admin
	if _, err := s.repo.Member(ctx, groupID, userID); err == nil {
		if role == store.RoleMember {
			if err := s.guardLastAdmin(ctx, groupID, userID); err != nil {
				return err
			}
		}
	} else if !errors.Is(err, store.ErrNoDocument) {
		return err
	}
	if err := s.repo.AddMember(ctx, &store.GroupMember{GroupID: groupID, UserID: userID, Role: role}); err != nil {
		return err
	}
	s.notify(ctx, events.TypeGroupMemberChanged, groupID,
		map[string]string{"group_id": groupID, "user_id": userID, "role": role, "change": "added"})
	return nil
}

// RemoveMember removes a member; admins only. Removing the last admin is
// rejected — delete the group instead.
func (s *Service) RemoveMember(ctx context.Context, callerID, groupID, userID string) error {
	if err := s.requireAdmin(ctx, groupID, callerID); err != nil {
		return err
	}
	if err := s.guardLastAdmin(ctx, groupID, userID); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return apperr.ErrNotFound
		}
		return err
	}
	s.notify(ctx, events.TypeGroupMemberChanged, groupID,
		map[string]string{"group_id": groupID, "user_id": userID, "change": "removed"})
	return nil
}

// SetRole changes a member's role; admins only. Demoting the last admin is
// rejected.
func (s *Service) SetRole(ctx context.Context, callerID, groupID, userID, role string) error {
	if role != store.RoleAdmin && role != store.RoleMember {
		return apperr.ErrBadRequest
	}
	if err := s.requireAdmin(ctx, groupID, callerID); err != nil {
		return err
	}
	if role == store.RoleMember {
		if err := s.guardLastAdmin(ctx, groupID, userID); err != nil {
			return err
		}
	}
	if err := s.repo.SetRole(ctx, groupID, userID, role); err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return apperr.ErrNotFound
		}
		return err
	}
	s.notify(ctx, events.TypeGroupMemberChanged, groupID,
		map[string]string{"group_id": groupID, "user_id": userID, "role": role, "change": "role"})
	return nil
}

// Leave removes the caller from the group, with the same last-admin guard.
func (s *Service) Leave(ctx context.Context, userID, groupID string) error {
	if _, err := s.member(ctx, groupID, userID); err != nil {
		return err
	}
	if err := s.guardLastAdmin(ctx, groupID, userID); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.notify(ctx, events.TypeGroupMemberChanged, groupID,
		map[string]string{"group_id": groupID, "user_id": userID, "change": "left"})
	return nil
}

func (s *Service) member(ctx context.Context, groupID, userID string) (*store.GroupMember, error) {
	m, err := s.repo.Member(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.ErrForbidden
		}
		return nil, err
	}
	return m, nil
}

func (s *Service) requireAdmin(ctx context.Context, groupID, userID string) error {
	m, err := s.member(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if m.Role != store.RoleAdmin {
		return apperr.ErrForbidden
	}
	return nil
}

// guardLastAdmin rejects an operation that would strip the group's only
// admin of the role.
func (s *Service) guardLastAdmin(ctx context.Context, groupID, userID string) error {
	m, err := s.repo.Member(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return apperr.ErrNotFound
		}
		return err
	}
	if m.Role != store.RoleAdmin {
		return nil
	}
	admins, err := s.repo.CountAdmins(ctx, groupID)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return apperr.ErrConflict
	}
	return nil
}

func (s *Service) notify(ctx context.Context, typ, groupID string, payload interface{}) {
	recipients, err := s.memberIDs(ctx, groupID)
	if err != nil {
		return
	}
	if ev, err := events.NewEnvelope(typ, groupID, recipients, payload); err == nil {
		s.pub.Publish(ctx, ev)
	}
}

func (s *Service) memberIDs(ctx context.Context, groupID string) ([]string, error) {
	members, err := s.repo.Members(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}
