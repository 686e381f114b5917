package chat

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"wanderlink/internal/model"
)

// fakeSession records everything sent to it; flipping dead makes every
// Send fail, simulating a broken transport.
type fakeSession struct {
	mu     sync.Mutex
	events []interface{}
	dead   bool
	closed bool
}

func (f *fakeSession) Send(event interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dead {
		return errors.New("transport gone")
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSession) received() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]interface{}, len(f.events))
	copy(cp, f.events)
	return cp
}

func TestRegistry_AttendeesTrackLiveSessions(t *testing.T) {
	r := NewRegistry()
	a1 := &fakeSession{}
	b1 := &fakeSession{}
	b2 := &fakeSession{}

	r.Register(a1, "alice", "conv-1")
	r.Register(b1, "bob", "conv-1")
	r.Register(b2, "bob", "conv-1")

	attendees := r.Attendees("conv-1")
	if len(attendees) != 2 || attendees[0] != "alice" || attendees[1] != "bob" {
		t.Fatalf("Attendees = %v, want [alice bob]", attendees)
	}

	// Bob still attends while one session remains.
	r.Unregister(b1, "bob", "conv-1")
	attendees = r.Attendees("conv-1")
	if len(attendees) != 2 {
		t.Fatalf("Attendees after partial disconnect = %v, want both users", attendees)
	}

	r.Unregister(b2, "bob", "conv-1")
	attendees = r.Attendees("conv-1")
	if len(attendees) != 1 || attendees[0] != "alice" {
		t.Fatalf("Attendees after full disconnect = %v, want [alice]", attendees)
	}
}

func TestRegistry_RegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	s := &fakeSession{}

	r.Register(s, "alice", "conv-1")
	r.Register(s, "alice", "conv-1")

	r.SendToUser("alice", "hello")
	if got := len(s.received()); got != 1 {
		t.Errorf("Expected exactly 1 delivery after duplicate register, got %d", got)
	}
}

func TestRegistry_UnregisterUnknownSessionIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Unregister(&fakeSession{}, "ghost", "conv-1")

	if got := r.Attendees("conv-1"); len(got) != 0 {
		t.Errorf("Attendees = %v, want empty", got)
	}
}

func TestRegistry_SendToUserPrunesDeadSessions(t *testing.T) {
	r := NewRegistry()
	alive := &fakeSession{}
	dead := &fakeSession{dead: true}

	r.Register(alive, "bob", "conv-1")
	r.Register(dead, "bob", "conv-1")

	r.SendToUser("bob", "ping")

	if got := len(alive.received()); got != 1 {
		t.Errorf("Live session got %d events, want 1", got)
	}
	if !dead.closed {
		t.Error("Dead session should have been closed")
	}

	// Pruned for good: the next send only reaches the live session.
	r.SendToUser("bob", "ping2")
	if got := len(alive.received()); got != 2 {
		t.Errorf("Live session got %d events after prune, want 2", got)
	}
}

func TestRegistry_BroadcastReachesEverySessionOfOtherUsers(t *testing.T) {
	r := NewRegistry()
	a1 := &fakeSession{}
	b1 := &fakeSession{}
	b2 := &fakeSession{}

	r.Register(a1, "alice", "conv-1")
	r.Register(b1, "bob", "conv-1")
	r.Register(b2, "bob", "conv-1")

	r.BroadcastToConversation("conv-1", "event", "alice")

	if got := len(a1.received()); got != 0 {
		t.Errorf("Excluded user received %d events, want 0", got)
	}
	if len(b1.received()) != 1 || len(b2.received()) != 1 {
		t.Errorf("Both of bob's sessions should receive the event, got %d and %d",
			len(b1.received()), len(b2.received()))
	}
}

func TestRegistry_BroadcastWithoutExclusionIncludesSender(t *testing.T) {
	r := NewRegistry()
	a1 := &fakeSession{}
	b1 := &fakeSession{}

	r.Register(a1, "alice", "conv-1")
	r.Register(b1, "bob", "conv-1")

	r.BroadcastToConversation("conv-1", "event", "")

	if len(a1.received()) != 1 || len(b1.received()) != 1 {
		t.Errorf("Expected delivery to all attendees, got %d and %d",
			len(a1.received()), len(b1.received()))
	}
}

func TestRegistry_SetTypingExcludesOriginator(t *testing.T) {
	r := NewRegistry()
	a1 := &fakeSession{}
	b1 := &fakeSession{}

	r.Register(a1, "alice", "conv-1")
	r.Register(b1, "bob", "conv-1")

	r.SetTyping("bob", "conv-1", true)

	if got := len(b1.received()); got != 0 {
		t.Errorf("Originator received %d typing events, want 0", got)
	}

	events := a1.received()
	if len(events) != 1 {
		t.Fatalf("Peer received %d events, want 1", len(events))
	}
	typing, ok := events[0].(model.TypingStatusEvent)
	if !ok {
		t.Fatalf("Expected TypingStatusEvent, got %T", events[0])
	}
	if !typing.IsTyping || typing.UserID != "bob" || typing.ConversationID != "conv-1" {
		t.Errorf("Unexpected typing event: %+v", typing)
	}
}

func TestRegistry_DisconnectClearsTypingAndNotifies(t *testing.T) {
	r := NewRegistry()
	a1 := &fakeSession{}
	b1 := &fakeSession{}

	r.Register(a1, "alice", "conv-1")
	r.Register(b1, "bob", "conv-1")

	// Bob starts typing, then his only session drops without typing_stop.
	r.SetTyping("bob", "conv-1", true)
	r.Unregister(b1, "bob", "conv-1")

	events := a1.received()
	if len(events) != 2 {
		t.Fatalf("Peer received %d events, want typing start + stop", len(events))
	}
	stop, ok := events[1].(model.TypingStatusEvent)
	if !ok {
		t.Fatalf("Expected TypingStatusEvent, got %T", events[1])
	}
	if stop.IsTyping || stop.UserID != "bob" {
		t.Errorf("Expected typing stopped for bob, got %+v", stop)
	}
}

func TestRegistry_NoTypingNotificationWithoutFlag(t *testing.T) {
	r := NewRegistry()
	a1 := &fakeSession{}
	b1 := &fakeSession{}

	r.Register(a1, "alice", "conv-1")
	r.Register(b1, "bob", "conv-1")
	r.Unregister(b1, "bob", "conv-1")

	if got := len(a1.received()); got != 0 {
		t.Errorf("Peer received %d events for a user who never typed, want 0", got)
	}
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", n%4)
			s := &fakeSession{}
			for j := 0; j < 50; j++ {
				r.Register(s, userID, "conv-1")
				r.SetTyping(userID, "conv-1", j%2 == 0)
				r.BroadcastToConversation("conv-1", "event", "")
				r.SendToUser(userID, "direct")
				r.Unregister(s, userID, "conv-1")
			}
		}(i)
	}
	wg.Wait()

	if got := r.Attendees("conv-1"); len(got) != 0 {
		t.Errorf("Attendees after churn = %v, want empty", got)
	}
}
