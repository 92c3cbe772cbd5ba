package hub

import (
	"testing"
	"time"
)

func newClient(userID string, buf int) *Client {
	return &Client{
		UserID:    userID,
		SocketID:  userID + "-sock",
		Send:      make(chan []byte, buf),
		Connected: time.Now(),
	}
}

func TestSendToUserReachesEverySocket(t *testing.T) {
	h := New()
	a1 := newClient("alice", 1)
	a2 := &Client{UserID: "alice", SocketID: "alice-2", Send: make(chan []byte, 1)}
	h.Add(a1)
	h.Add(a2)

	h.SendToUser("alice", []byte("hi"))

	for _, c := range []*Client{a1, a2} {
		select {
		case msg := <-c.Send:
			if string(msg) != "hi" {
				t.Errorf("got %q", msg)
			}
		default:
			t.Errorf("socket %s got nothing", c.SocketID)
		}
	}
}

func TestSendToUnknownUserIsNoop(t *testing.T) {
	h := New()
	h.SendToUser("nobody", []byte("hi")) // must not panic
}

func TestSlowClientIsSkippedNotBlocked(t *testing.T) {
	h := New()
	slow := newClient("alice", 1)
	h.Add(slow)
	slow.Send <- []byte("backlog") // fill the buffer

	done := make(chan struct{})
	go func() {
		h.SendToUser("alice", []byte("dropped"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendToUser blocked on a full client buffer")
	}
	if got := <-slow.Send; string(got) != "backlog" {
		t.Errorf("buffer content = %q", got)
	}
}

func TestRemoveDropsEmptyUserEntry(t *testing.T) {
	h := New()
	c := newClient("alice", 1)
	h.Add(c)
	if !h.Connected("alice") {
		t.Fatal("alice should be connected")
	}
	h.Remove(c)
	if h.Connected("alice") {
		t.Error("alice still connected after removal")
	}
	h.SendToUser("alice", []byte("hi")) // must not panic on pruned entry
}

func TestSendToUsers(t *testing.T) {
	h := New()
	a := newClient("alice", 1)
	b := newClient("bob", 1)
	h.Add(a)
	h.Add(b)

	h.SendToUsers([]string{"alice", "bob", "ghost"}, []byte("all"))

	for _, c := range []*Client{a, b} {
		select {
		case <-c.Send:
		default:
			t.Errorf("%s got nothing", c.UserID)
		}
	}
}
