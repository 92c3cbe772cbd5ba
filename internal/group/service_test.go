package group

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sable-im/sable/internal/apperr"
	"github.com/sable-im/sable/internal/events"
	"github.com/sable-im/sable/internal/store"
)

type fakeRepo struct {
	groups  map[string]*store.Group
	members map[string]map[string]*store.GroupMember // groupID -> userID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		groups:  make(map[string]*store.Group),
		members: make(map[string]map[string]*store.GroupMember),
	}
}

func (f *fakeRepo) Create(_ context.Context, g *store.Group, creator *store.GroupMember) error {
	f.groups[g.ID] = g
	f.members[g.ID] = map[string]*store.GroupMember{creator.UserID: creator}
	return nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (*store.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, store.ErrNoDocument
	}
	return g, nil
}

func (f *fakeRepo) Update(_ context.Context, id string, fields bson.M) (*store.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, store.ErrNoDocument
	}
	if v, ok := fields["name"].(string); ok {
		g.Name = v
	}
	if v, ok := fields["description"].(string); ok {
		g.Description = v
	}
	if v, ok := fields["avatar_url"].(string); ok {
		g.AvatarURL = v
	}
	return g, nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	delete(f.groups, id)
	delete(f.members, id)
	return nil
}

func (f *fakeRepo) Member(_ context.Context, groupID, userID string) (*store.GroupMember, error) {
	m, ok := f.members[groupID][userID]
	if !ok {
		return nil, store.ErrNoDocument
	}
	return m, nil
}

func (f *fakeRepo) Members(_ context.Context, groupID string) ([]*store.GroupMember, error) {
	var out []*store.GroupMember
	for _, m := range f.members[groupID] {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRepo) AddMember(_ context.Context, m *store.GroupMember) error {
	if f.members[m.GroupID] == nil {
		f.members[m.GroupID] = make(map[string]*store.GroupMember)
	}
	f.members[m.GroupID][m.UserID] = m
	return nil
}

func (f *fakeRepo) RemoveMember(_ context.Context, groupID, userID string) error {
	if _, ok := f.members[groupID][userID]; !ok {
		return store.ErrNoDocument
	}
	delete(f.members[groupID], userID)
	return nil
}

func (f *fakeRepo) SetRole(_ context.Context, groupID, userID, role string) error {
	m, ok := f.members[groupID][userID]
	if !ok {
		return store.ErrNoDocument
	}
	m.Role = role
	return nil
}

func (f *fakeRepo) CountAdmins(_ context.Context, groupID string) (int64, error) {
	var n int64
	for _, m := range f.members[groupID] {
		if m.Role == store.RoleAdmin {
			n++
		}
	}
	return n, nil
}

type fakeProfiles struct{ ids map[string]bool }

func (f *fakeProfiles) Get(_ context.Context, id string) (*store.Profile, error) {
	if !f.ids[id] {
		return nil, store.ErrNoDocument
	}
	return &store.Profile{ID: id}, nil
}

func (f *fakeProfiles) GetMany(_ context.Context, ids []string) (map[string]*store.Profile, error) {
	out := make(map[string]*store.Profile)
	for _, id := range ids {
		if f.ids[id] {
			out[id] = &store.Profile{ID: id}
		}
	}
	return out, nil
}

type capturePub struct{ events []*events.Envelope }

func (p *capturePub) Publish(_ context.Context, ev *events.Envelope) {
	p.events = append(p.events, ev)
}

func testService(t *testing.T, userIDs ...string) (*Service, *fakeRepo, *capturePub) {
	t.Helper()
	ids := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		ids[id] = true
	}
	repo := newFakeRepo()
	pub := &capturePub{}
	return NewService(repo, &fakeProfiles{ids: ids}, pub), repo, pub
}

func TestCreateMakesCreatorAdmin(t *testing.T) {
	svc, repo, _ := testService(t, "alice")
	g, err := svc.Create(context.Background(), "alice", "book club", "")
	if err != nil {
		t.Fatal(err)
	}
	m, err := repo.Member(context.Background(), g.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if m.Role != store.RoleAdmin {
		t.Errorf("creator role = %q, want admin", m.Role)
	}
}

func TestCreateRejectsEmptyName(t *testing.T) {
	svc, _, _ := testService(t, "alice")
	if _, err := svc.Create(context.Background(), "alice", "   ", ""); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("err = %v, want bad request", err)
	}
}

func TestLastAdminGuard(t *testing.T) {
	ctx := context.Background()
	setup := func(t *testing.T) (*Service, string) {
		t.Helper()
		svc, _, _ := testService(t, "alice", "bob")
		g, err := svc.Create(ctx, "alice", "g", "")
		if err != nil {
			t.Fatal(err)
		}
		if err := svc.AddMember(ctx, "alice", g.ID, "bob", store.RoleMember); err != nil {
			t.Fatal(err)
		}
		return svc, g.ID
	}

	t.Run("removing the only admin is rejected", func(t *testing.T) {
		svc, gid := setup(t)
		if err := svc.RemoveMember(ctx, "alice", gid, "alice"); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("err = %v, want conflict", err)
		}
	})

	t.Run("demoting the only admin is rejected", func(t *testing.T) {
		svc, gid := setup(t)
		if err := svc.SetRole(ctx, "alice", gid, "alice", store.RoleMember); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("err = %v, want conflict", err)
		}
	})

	t.Run("leaving as the only admin is rejected", func(t *testing.T) {
		svc, gid := setup(t)
		if err := svc.Leave(ctx, "alice", gid); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("err = %v, want conflict", err)
		}
	})

	t.Run("second admin unblocks all three", func(t *testing.T) {
		svc, gid := setup(t)
		if err := svc.SetRole(ctx, "alice", gid, "bob", store.RoleAdmin); err != nil {
			t.Fatal(err)
		}
		if err := svc.Leave(ctx, "alice", gid); err != nil {
			t.Errorf("leave with a second admin: %v", err)
		}
	})

	t.Run("re-adding the only admin as member is rejected", func(t *testing.T) {
		svc, gid := setup(t)
		if err := svc.AddMember(ctx, "alice", gid, "alice", store.RoleMember); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("err = %v, want conflict", err)
		}
		m, err := svc.repo.Member(ctx, gid, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if m.Role != store.RoleAdmin {
			t.Errorf("role = %q, want admin", m.Role)
		}
	})

	t.Run("re-adding an existing admin as admin is fine", func(t *testing.T) {
		svc, gid := setup(t)
		if err := svc.AddMember(ctx, "alice", gid, "alice", store.RoleAdmin); err != nil {
			t.Errorf("re-add as admin: %v", err)
		}
	})

	t.Run("removing a plain member is fine", func(t *testing.T) {
		svc, gid := setup(t)
		if err := svc.RemoveMember(ctx, "alice", gid, "bob"); err != nil {
			t.Errorf("remove member: %v", err)
		}
	})
}

func TestAdminGate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := testService(t, "alice", "bob", "carol")
	g, err := svc.Create(ctx, "alice", "g", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.AddMember(ctx, "alice", g.ID, "bob", store.RoleMember); err != nil {
		t.Fatal(err)
	}

	if err := svc.AddMember(ctx, "bob", g.ID, "carol", store.RoleMember); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("member adding member: err = %v, want forbidden", err)
	}
	if _, err := svc.Update(ctx, "bob", g.ID, "new name", "", ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("member editing group: err = %v, want forbidden", err)
	}
	if err := svc.AddMember(ctx, "carol", g.ID, "carol", store.RoleMember); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("outsider adding member: err = %v, want forbidden", err)
	}
}

func TestAddMemberValidatesRoleAndProfile(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := testService(t, "alice", "bob")
	g, err := svc.Create(ctx, "alice", "g", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.AddMember(ctx, "alice", g.ID, "bob", "owner"); !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("bogus role: err = %v, want bad request", err)
	}
	if err := svc.AddMember(ctx, "alice", g.ID, "ghost", store.RoleMember); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown user: err = %v, want not found", err)
	}
}

func TestMembershipChangesNotifyMembers(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := testService(t, "alice", "bob")
	g, err := svc.Create(ctx, "alice", "g", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.AddMember(ctx, "alice", g.ID, "bob", store.RoleMember); err != nil {
		t.Fatal(err)
	}
	if len(pub.events) == 0 {
		t.Fatal("no change event published")
	}
	last := pub.events[len(pub.events)-1]
	if last.Type != events.TypeGroupMemberChanged {
		t.Errorf("event type = %q, want %q", last.Type, events.TypeGroupMemberChanged)
	}
	if len(last.Recipients) != 2 {
		t.Errorf("recipients = %v, want both members", last.Recipients)
	}
}
