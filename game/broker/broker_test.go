package broker

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/snake-duel/server/game/registry"
	"github.com/snake-duel/server/game/session"
)

// sent records one delivered event.
type sent struct {
	to      uuid.UUID
	event   string
	payload interface{}
}

// fakeSender collects everything the broker fans out.
type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
}

func (f *fakeSender) Send(connID uuid.UUID, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{to: connID, event: event, payload: payload})
}

func (f *fakeSender) byEvent(event string) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []sent
	for _, m := range f.msgs {
		if m.event == event {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = nil
}

func newTestBroker() (*Broker, *fakeSender) {
	sender := &fakeSender{}
	b := New(session.NewManager(), registry.New(), sender)
	return b, sender
}

// createSession connects a creator and returns its ID plus the session code.
func createSession(t *testing.T, b *Broker, sender *fakeSender) (uuid.UUID, string) {
	t.Helper()

	creator := b.Connect()
	b.CreateSession(creator)

	created := sender.byEvent(EventSessionCreated)
	if len(created) != 1 {
		t.Fatalf("Expected 1 session_created, got %d", len(created))
	}
	payload := created[0].payload.(SessionCreated)
	sender.reset()
	return creator, payload.Code
}

// pairedSession returns a session with two seated participants in the ready
// phase.
func pairedSession(t *testing.T, b *Broker, sender *fakeSender) (creator, joiner uuid.UUID, code string) {
	t.Helper()

	creator, code = createSession(t, b, sender)
	joiner = b.Connect()
	b.JoinSession(joiner, code)
	sender.reset()
	return creator, joiner, code
}

// playingSession returns a session that has completed the readiness handshake.
func playingSession(t *testing.T, b *Broker, sender *fakeSender) (creator, joiner uuid.UUID, code string) {
	t.Helper()

	creator, joiner, code = pairedSession(t, b, sender)
	b.PlayerReady(creator, code)
	b.PlayerReady(joiner, code)
	sender.reset()
	return creator, joiner, code
}

func TestBroker_CreateSession(t *testing.T) {
	b, sender := newTestBroker()

	creator := b.Connect()
	b.CreateSession(creator)

	created := sender.byEvent(EventSessionCreated)
	if len(created) != 1 {
		t.Fatalf("Expected 1 session_created, got %d", len(created))
	}
	if created[0].to != creator {
		t.Error("session_created should go to the creator only")
	}

	payload := created[0].payload.(SessionCreated)
	if len(payload.Code) != 8 {
		t.Errorf("Expected 8-character code, got %q", payload.Code)
	}
	if payload.Seat != 1 {
		t.Errorf("Expected seat 1 for creator, got %d", payload.Seat)
	}

	t.Run("create while already in a session is dropped", func(t *testing.T) {
		sender.reset()
		b.CreateSession(creator)
		if len(sender.byEvent(EventSessionCreated)) != 0 {
			t.Error("Second create from a seated connection should be ignored")
		}
	})
}

func TestBroker_JoinSession(t *testing.T) {
	b, sender := newTestBroker()
	creator, code := createSession(t, b, sender)

	t.Run("case-insensitive join notifies both seats", func(t *testing.T) {
		joiner := b.Connect()
		b.JoinSession(joiner, strings.ToLower(code))

		joined := sender.byEvent(EventSessionJoined)
		if len(joined) != 2 {
			t.Fatalf("Expected session_joined broadcast to both seats, got %d", len(joined))
		}
		recipients := map[uuid.UUID]bool{joined[0].to: true, joined[1].to: true}
		if !recipients[creator] || !recipients[joiner] {
			t.Error("session_joined should reach both creator and joiner")
		}

		payload := joined[0].payload.(SessionJoined)
		if payload.Seat != 2 {
			t.Errorf("Expected seat 2 in join notification, got %d", payload.Seat)
		}
		if payload.Code != code {
			t.Errorf("Expected canonical code %q, got %q", code, payload.Code)
		}
	})

	t.Run("unknown code rejected to requester only", func(t *testing.T) {
		sender.reset()
		stranger := b.Connect()
		b.JoinSession(stranger, "ZZZZZZZZ")

		errs := sender.byEvent(EventError)
		if len(errs) != 1 {
			t.Fatalf("Expected 1 error, got %d", len(errs))
		}
		if errs[0].to != stranger {
			t.Error("Rejection should go to the requester only")
		}
		if reason := errs[0].payload.(ErrorEvent).Reason; reason != ReasonNotFound {
			t.Errorf("Expected reason %q, got %q", ReasonNotFound, reason)
		}
	})

	t.Run("third join rejected as full", func(t *testing.T) {
		sender.reset()
		third := b.Connect()
		b.JoinSession(third, code)

		errs := sender.byEvent(EventError)
		if len(errs) != 1 {
			t.Fatalf("Expected 1 error, got %d", len(errs))
		}
		if errs[0].to != third {
			t.Error("Capacity rejection should go to the requester only")
		}
		if reason := errs[0].payload.(ErrorEvent).Reason; reason != ReasonFull {
			t.Errorf("Expected reason %q, got %q", ReasonFull, reason)
		}
		if len(sender.byEvent(EventSessionJoined)) != 0 {
			t.Error("Membership must not change on a rejected join")
		}
	})
}

func TestBroker_ConcurrentJoins(t *testing.T) {
	b, sender := newTestBroker()
	_, code := createSession(t, b, sender)

	joiners := make([]uuid.UUID, 10)
	for i := range joiners {
		joiners[i] = b.Connect()
	}

	var wg sync.WaitGroup
	for _, id := range joiners {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			b.JoinSession(id, code)
		}(id)
	}
	wg.Wait()

	// Exactly one join wins: two session_joined notifications (one per
	// seat), everyone else rejected as full.
	if got := len(sender.byEvent(EventSessionJoined)); got != 2 {
		t.Errorf("Expected 2 session_joined notifications, got %d", got)
	}
	if got := len(sender.byEvent(EventError)); got != len(joiners)-1 {
		t.Errorf("Expected %d capacity rejections, got %d", len(joiners)-1, got)
	}
}

func TestBroker_ReadyHandshake(t *testing.T) {
	b, sender := newTestBroker()
	creator, joiner, code := pairedSession(t, b, sender)

	t.Run("one ready does not start", func(t *testing.T) {
		b.PlayerReady(creator, code)
		if len(sender.byEvent(EventSessionStarted)) != 0 {
			t.Error("Session must not start with one seat ready")
		}
	})

	t.Run("both ready starts exactly once", func(t *testing.T) {
		b.PlayerReady(joiner, code)

		started := sender.byEvent(EventSessionStarted)
		if len(started) != 2 {
			t.Fatalf("Expected session_started for both seats, got %d", len(started))
		}

		payload := started[0].payload.(SessionStarted)
		if len(payload.Participants) != 2 {
			t.Fatalf("Expected 2 participant identities, got %d", len(payload.Participants))
		}
		if payload.Participants[0] != creator.String() || payload.Participants[1] != joiner.String() {
			t.Error("Participant identities should be ordered by seat")
		}
	})

	t.Run("duplicate ready does not restart", func(t *testing.T) {
		sender.reset()
		b.PlayerReady(creator, code)
		if len(sender.byEvent(EventSessionStarted)) != 0 {
			t.Error("Ready after start must not re-broadcast session_started")
		}
	})
}

func TestBroker_ReadyConcurrentWithOpsListing(t *testing.T) {
	// The ops surfaces snapshot sessions while the handshake mutates them;
	// run both at once so the race detector can see any unguarded write.
	b, sender := newTestBroker()
	creator, joiner, code := pairedSession(t, b, sender)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			b.Sessions()
		}
	}()

	b.PlayerReady(creator, code)
	b.PlayerReady(joiner, code)
	<-done

	if got := len(sender.byEvent(EventSessionStarted)); got != 2 {
		t.Errorf("Expected session_started for both seats, got %d", got)
	}
}

func TestBroker_LoneCreatorReady(t *testing.T) {
	b, sender := newTestBroker()
	creator, code := createSession(t, b, sender)

	b.PlayerReady(creator, code)

	if len(sender.byEvent(EventSessionStarted)) != 0 {
		t.Error("A lone creator marking ready must never start the session")
	}
}

func TestBroker_Move(t *testing.T) {
	b, sender := newTestBroker()
	creator, joiner, code := playingSession(t, b, sender)

	b.Move(creator, code, "up")

	moves := sender.byEvent(EventMoveUpdate)
	if len(moves) != 2 {
		t.Fatalf("Expected move_update for all participants including sender, got %d", len(moves))
	}
	recipients := map[uuid.UUID]bool{moves[0].to: true, moves[1].to: true}
	if !recipients[creator] || !recipients[joiner] {
		t.Error("move_update should reach both participants")
	}

	payload := moves[0].payload.(MoveUpdate)
	if payload.Sender != creator.String() {
		t.Errorf("Expected sender %s, got %s", creator, payload.Sender)
	}
	if payload.Direction != "up" {
		t.Errorf("Expected direction up, got %s", payload.Direction)
	}
}

func TestBroker_StateSnapshot(t *testing.T) {
	b, sender := newTestBroker()
	creator, joiner, code := playingSession(t, b, sender)

	snakes := json.RawMessage(`[{"body":[[1,2],[1,3]]}]`)
	food := json.RawMessage(`[[5,5]]`)
	scores := json.RawMessage(`{"1":10,"2":0}`)
	b.StateSnapshot(creator, code, snakes, food, scores)

	updates := sender.byEvent(EventStateUpdate)
	if len(updates) != 1 {
		t.Fatalf("Expected state_update to the opponent only, got %d", len(updates))
	}
	if updates[0].to != joiner {
		t.Error("state_update must skip the sending client")
	}

	payload := updates[0].payload.(StateUpdate)
	if string(payload.Snakes) != string(snakes) {
		t.Error("Snapshot payload must be relayed verbatim")
	}
}

func TestBroker_PlayerDied(t *testing.T) {
	b, sender := newTestBroker()
	_, joiner, code := playingSession(t, b, sender)

	b.PlayerDied(joiner, code)

	died := sender.byEvent(EventOpponentDied)
	if len(died) != 2 {
		t.Fatalf("Expected opponent_died for all participants, got %d", len(died))
	}
	if seat := died[0].payload.(OpponentDied).Seat; seat != 2 {
		t.Errorf("Expected dying seat 2, got %d", seat)
	}
}

func TestBroker_Disconnect(t *testing.T) {
	b, sender := newTestBroker()
	creator, joiner, code := playingSession(t, b, sender)

	b.Disconnect(creator)

	t.Run("remaining participant notified once", func(t *testing.T) {
		ended := sender.byEvent(EventSessionEnded)
		if len(ended) != 1 {
			t.Fatalf("Expected exactly 1 session_ended, got %d", len(ended))
		}
		if ended[0].to != joiner {
			t.Error("session_ended should go to the remaining participant")
		}
		if reason := ended[0].payload.(SessionEnded).Reason; reason != "opponent_disconnected" {
			t.Errorf("Expected reason opponent_disconnected, got %q", reason)
		}
	})

	t.Run("session unreachable afterward", func(t *testing.T) {
		sender.reset()

		// A stale move from the survivor is dropped with no reply.
		b.Move(joiner, code, "left")
		if len(sender.msgs) != 0 {
			t.Errorf("Expected stale move to be dropped, got %d messages", len(sender.msgs))
		}

		// A fresh join on the dead code is a user-visible not-found.
		stranger := b.Connect()
		b.JoinSession(stranger, code)
		errs := sender.byEvent(EventError)
		if len(errs) != 1 || errs[0].payload.(ErrorEvent).Reason != ReasonNotFound {
			t.Error("Join on an ended session should be rejected as not_found")
		}
	})

	t.Run("disconnect of unseated connection is quiet", func(t *testing.T) {
		sender.reset()
		b.Disconnect(b.Connect())
		if len(sender.msgs) != 0 {
			t.Errorf("Expected no notifications, got %d", len(sender.msgs))
		}
	})
}

func TestBroker_WaitingDisconnectFreesCode(t *testing.T) {
	b, sender := newTestBroker()
	creator, code := createSession(t, b, sender)

	b.Disconnect(creator)

	if len(sender.byEvent(EventSessionEnded)) != 0 {
		t.Error("No one is left to notify when a lone creator disconnects")
	}

	joiner := b.Connect()
	b.JoinSession(joiner, code)
	errs := sender.byEvent(EventError)
	if len(errs) != 1 || errs[0].payload.(ErrorEvent).Reason != ReasonNotFound {
		t.Error("Code of an abandoned session should no longer resolve")
	}
}

func TestBroker_ForeignAndUnknownReferences(t *testing.T) {
	b, sender := newTestBroker()
	creator, _, code := playingSession(t, b, sender)

	t.Run("foreign code dropped", func(t *testing.T) {
		_, otherCode := createSession(t, b, sender)

		b.Move(creator, otherCode, "up")
		if len(sender.byEvent(EventMoveUpdate)) != 0 {
			t.Error("Event referencing a session the sender is not in must be dropped")
		}
	})

	t.Run("non-member with valid code dropped", func(t *testing.T) {
		sender.reset()
		outsider := b.Connect()
		b.Move(outsider, code, "down")
		if len(sender.msgs) != 0 {
			t.Error("Events from non-members must be dropped silently")
		}
	})

	t.Run("unregistered connection dropped", func(t *testing.T) {
		sender.reset()
		ghost := uuid.New()
		b.CreateSession(ghost)
		b.Move(ghost, code, "down")
		if len(sender.msgs) != 0 {
			t.Error("Events from unknown connections must be dropped silently")
		}
	})
}
