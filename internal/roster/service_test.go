package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sable-im/sable/internal/presence"
	"github.com/sable-im/sable/internal/store"
)

type fakeSummaries struct{ rows []*store.ContactSummary }

func (f *fakeSummaries) Summaries(_ context.Context, _ string) ([]*store.ContactSummary, error) {
	return f.rows, nil
}

type fakeGroups struct {
	groups      []*store.Group
	memberships map[string]*store.GroupMember
}

func (f *fakeGroups) ListForUser(_ context.Context, _ string) ([]*store.Group, map[string]*store.GroupMember, error) {
	return f.groups, f.memberships, nil
}

type fakeGroupMessages struct {
	last   map[string]*store.GroupMessage
	counts map[string]int64
}

func (f *fakeGroupMessages) Last(_ context.Context, groupID string) (*store.GroupMessage, error) {
	m, ok := f.last[groupID]
	if !ok {
		return nil, store.ErrNoDocument
	}
	return m, nil
}

func (f *fakeGroupMessages) CountSince(_ context.Context, groupID, _ string, _ time.Time) (int64, error) {
	return f.counts[groupID], nil
}

type fakeProfiles struct{ profiles map[string]*store.Profile }

func (f *fakeProfiles) GetMany(_ context.Context, ids []string) (map[string]*store.Profile, error) {
	out := make(map[string]*store.Profile)
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakePresence struct {
	markers map[string]*presence.Marker
	err     error
}

func (f *fakePresence) Get(_ context.Context, userID string) (*presence.Marker, error) {
	if f.err != nil {
		return nil, f.err
	}
	if m, ok := f.markers[userID]; ok {
		return m, nil
	}
	return &presence.Marker{UserID: userID, Status: store.StatusOffline}, nil
}

func at(sec int) time.Time {
	return time.Date(2026, 8, 1, 12, 0, sec, 0, time.UTC)
}

func TestContacts(t *testing.T) {
	ctx := context.Background()
	sums := &fakeSummaries{rows: []*store.ContactSummary{
		{PeerID: "bob", Unread: 2, Last: &store.Message{SenderID: "bob", ReceiverID: "me", Content: "newest", CreatedAt: at(30)}},
		{PeerID: "carol", Unread: 0, Last: &store.Message{SenderID: "me", ReceiverID: "carol", Content: "older", CreatedAt: at(10)}},
		{PeerID: "deleted", Unread: 1, Last: &store.Message{CreatedAt: at(5)}},
	}}
	profiles := &fakeProfiles{profiles: map[string]*store.Profile{
		"bob":   {ID: "bob", OnlineStatus: store.StatusOnline}, // mirrored column says online
		"carol": {ID: "carol", OnlineStatus: store.StatusOnline},
	}}
	pres := &fakePresence{markers: map[string]*presence.Marker{
		"bob": {UserID: "bob", Status: store.StatusOnline, LastSeen: at(29)},
		// carol has no live marker: her TTL expired
	}}
	svc := NewService(sums, &fakeGroups{}, &fakeGroupMessages{}, profiles, pres)

	rows, err := svc.Contacts(ctx, "me")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (vanished profile skipped)", len(rows))
	}
	if rows[0].Profile.ID != "bob" || rows[1].Profile.ID != "carol" {
		t.Errorf("order = %s, %s; want newest conversation first", rows[0].Profile.ID, rows[1].Profile.ID)
	}
	if rows[0].Unread != 2 {
		t.Errorf("unread = %d, want 2", rows[0].Unread)
	}
	if rows[0].LastMessage == nil || rows[0].LastMessage.Content != "newest" {
		t.Errorf("last message = %+v", rows[0].LastMessage)
	}
	// live marker missing -> offline wins over the stale mirrored column
	if rows[1].Profile.OnlineStatus != store.StatusOffline {
		t.Errorf("carol status = %q, want offline after TTL expiry", rows[1].Profile.OnlineStatus)
	}
	if rows[0].Profile.OnlineStatus != store.StatusOnline {
		t.Errorf("bob status = %q, want online", rows[0].Profile.OnlineStatus)
	}
}

func TestContactsKeepMirroredStatusWhenPresenceDown(t *testing.T) {
	sums := &fakeSummaries{rows: []*store.ContactSummary{
		{PeerID: "bob", Last: &store.Message{CreatedAt: at(1)}},
	}}
	profiles := &fakeProfiles{profiles: map[string]*store.Profile{
		"bob": {ID: "bob", OnlineStatus: store.StatusOnline},
	}}
	svc := NewService(sums, &fakeGroups{}, &fakeGroupMessages{}, profiles, &fakePresence{err: errors.New("redis down")})

	rows, err := svc.Contacts(context.Background(), "me")
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].Profile.OnlineStatus != store.StatusOnline {
		t.Errorf("status = %q, want the mirrored value kept", rows[0].Profile.OnlineStatus)
	}
}

func TestGroupsSortedByRecencyWithUnread(t *testing.T) {
	groups := &fakeGroups{
		groups: []*store.Group{
			{ID: "quiet", Name: "quiet", CreatedAt: at(0)},
			{ID: "busy", Name: "busy", CreatedAt: at(0)},
			{ID: "fresh", Name: "fresh", CreatedAt: at(40)}, // no messages yet, newest group
		},
		memberships: map[string]*store.GroupMember{
			"quiet": {GroupID: "quiet", UserID: "me", Role: store.RoleMember, LastReadAt: at(20)},
			"busy":  {GroupID: "busy", UserID: "me", Role: store.RoleAdmin, LastReadAt: at(5)},
			"fresh": {GroupID: "fresh", UserID: "me", Role: store.RoleMember, LastReadAt: at(40)},
		},
	}
	gm := &fakeGroupMessages{
		last: map[string]*store.GroupMessage{
			"quiet": {GroupID: "quiet", CreatedAt: at(15)},
			"busy":  {GroupID: "busy", CreatedAt: at(30)},
		},
		counts: map[string]int64{"quiet": 0, "busy": 7},
	}
	svc := NewService(&fakeSummaries{}, groups, gm, &fakeProfiles{}, nil)

	rows, err := svc.Groups(context.Background(), "me")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	order := []string{rows[0].Group.ID, rows[1].Group.ID, rows[2].Group.ID}
	want := []string{"fresh", "busy", "quiet"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	for _, r := range rows {
		if r.Group.ID == "busy" {
			if r.Unread != 7 {
				t.Errorf("busy unread = %d, want 7", r.Unread)
			}
			if r.Role != store.RoleAdmin {
				t.Errorf("busy role = %q, want admin", r.Role)
			}
		}
		if r.Group.ID == "fresh" && r.LastMessage != nil {
			t.Error("fresh group should have no last message")
		}
	}
}
