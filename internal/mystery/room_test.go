package mystery_test

import (
	"fmt"
	"testing"

	"mystery-server/internal/game"
	"mystery-server/internal/mystery"
)

func newLobby(t *testing.T, playerCount int) *mystery.Room {
	t.Helper()
	room := mystery.NewRoom("ABC234", "Test Room", 6, false)
	for i := 0; i < playerCount; i++ {
		id := string(rune('a' + i))
		err := room.AddPlayer(&mystery.Player{
			ID:          id,
			SessionID:   "session-" + id,
			Name:        fmt.Sprintf("Player %s", id),
			IsConnected: true,
			IsReady:     true,
		})
		if err != nil {
			t.Fatalf("AddPlayer(%s): %v", id, err)
		}
	}
	return room
}

// newStartedRoom builds a four player game with a fixed deal so tests can
// reason about exact hands. Turn starts with the host "a".
func newStartedRoom(t *testing.T) *mystery.Room {
	t.Helper()
	room := newLobby(t, 4)
	if err := room.Start("a"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	room.State.Solution = game.Assumption{Suspect: "Miss Scarlet", Weapon: "Knife", Room: "Study"}
	room.State.Hands = map[string][]string{
		"a": {"Colonel Mustard", "Candlestick", "Kitchen", "Lounge"},
		"b": {"Professor Plum", "Rope", "Library", "Hall"},
		"c": {"Mrs. White", "Revolver", "Ballroom", "Dining Room"},
		"d": {"Mr. Green", "Wrench", "Billiard Room", "Conservatory"},
	}
	return room
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected error with code %s, got nil", code)
	}
	if got := mystery.ErrCode(err); got != code {
		t.Fatalf("Expected error code %s, got %s (%v)", code, got, err)
	}
}

func TestAddPlayerFirstBecomesHost(t *testing.T) {
	room := newLobby(t, 3)
	if room.HostID != "a" {
		t.Errorf("First player should be host, got %q", room.HostID)
	}
}

func TestAddPlayerRoomFull(t *testing.T) {
	room := mystery.NewRoom("ABC234", "Tiny", 3, false)
	for _, id := range []string{"a", "b", "c"} {
		if err := room.AddPlayer(&mystery.Player{ID: id, IsConnected: true}); err != nil {
			t.Fatalf("AddPlayer(%s): %v", id, err)
		}
	}

	err := room.AddPlayer(&mystery.Player{ID: "d", IsConnected: true})
	assertCode(t, err, mystery.CodeRoomFull)
}

func TestAddPlayerAfterStartRejected(t *testing.T) {
	room := newStartedRoom(t)

	err := room.AddPlayer(&mystery.Player{ID: "late", IsConnected: true})
	assertCode(t, err, mystery.CodeAlreadyStarted)
}

func TestStartRequiresHost(t *testing.T) {
	room := newLobby(t, 3)
	assertCode(t, room.Start("b"), mystery.CodeNotHost)
}

func TestStartRequiresThreePlayers(t *testing.T) {
	room := newLobby(t, 2)
	assertCode(t, room.Start("a"), mystery.CodeNotEnoughPlayers)

	// Disconnected players do not count.
	room = newLobby(t, 3)
	room.PlayerByID("c").IsConnected = false
	assertCode(t, room.Start("a"), mystery.CodeNotEnoughPlayers)
}

func TestStartRequiresAllReady(t *testing.T) {
	room := newLobby(t, 3)
	room.PlayerByID("b").IsReady = false
	assertCode(t, room.Start("a"), mystery.CodeNotReady)
}

func TestStartDealsAndOpensTurn(t *testing.T) {
	room := newLobby(t, 4)
	if err := room.Start("a"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if !room.Started {
		t.Error("Room should be started")
	}
	if room.State.Phase != mystery.PhaseIdle {
		t.Errorf("Phase should be Idle, got %s", room.State.Phase)
	}
	if turn := room.CurrentTurn(); turn == nil || turn.ID != "a" {
		t.Errorf("First turn should belong to the host")
	}

	total := 0
	for _, p := range room.Players {
		hand := room.Hand(p.ID)
		if len(hand) == 0 {
			t.Errorf("Player %s was dealt an empty hand", p.ID)
		}
		total += len(hand)
	}
	if want := len(game.Deck()) - 3; total != want {
		t.Errorf("Expected %d cards dealt, got %d", want, total)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	room := newStartedRoom(t)
	solution := room.State.Solution

	if err := room.Start("a"); err != nil {
		t.Fatalf("Second Start should be a no-op, got %v", err)
	}
	if !room.State.Solution.Equal(solution) {
		t.Error("Second Start must not redeal")
	}
}

func TestLeaveBeforeStartRemovesPlayer(t *testing.T) {
	room := newLobby(t, 3)

	if !room.Leave("a") {
		t.Fatal("Leave should succeed for a seated player")
	}
	if room.PlayerByID("a") != nil {
		t.Error("Player should be removed pre-start")
	}
	if room.HostID != "b" {
		t.Errorf("Host should transfer to next player, got %q", room.HostID)
	}
	if room.Leave("zz") {
		t.Error("Leave should report false for unknown players")
	}
}

func TestLeaveAfterStartEliminates(t *testing.T) {
	room := newStartedRoom(t)

	if !room.Leave("b") {
		t.Fatal("Leave should succeed")
	}
	p := room.PlayerByID("b")
	if p == nil {
		t.Fatal("Started games keep the seat")
	}
	if !p.Eliminated || p.IsConnected {
		t.Error("Leaving a started game should eliminate and disconnect")
	}
	if len(room.Players) != 4 {
		t.Error("Turn order must not shrink mid-game")
	}
}

func TestHandNeverNil(t *testing.T) {
	room := newStartedRoom(t)
	if hand := room.Hand("nobody"); hand == nil {
		t.Error("Hand should return an empty slice for unknown players")
	}
}

func TestCurrentTurnSkipsIneligible(t *testing.T) {
	room := newStartedRoom(t)
	room.PlayerByID("b").IsConnected = false

	update := room.MarkDisconnected("a")
	if update == nil || !update.TurnAdvanced {
		t.Fatal("Disconnecting the turn holder should advance the turn")
	}
	if turn := room.CurrentTurn(); turn == nil || turn.ID != "c" {
		t.Errorf("Turn should skip disconnected b and land on c, got %+v", room.CurrentTurn())
	}
}

func TestRebindRewritesIdentity(t *testing.T) {
	room := newStartedRoom(t)
	hand := room.Hand("a")

	room.Rebind("a", "a2")

	if room.PlayerByID("a") != nil {
		t.Error("Old id should be gone")
	}
	p := room.PlayerByID("a2")
	if p == nil || p.SessionID != "session-a" {
		t.Fatal("Player should keep their seat under the new id")
	}
	if room.HostID != "a2" {
		t.Errorf("Host id should follow the rebind, got %q", room.HostID)
	}
	if got := room.Hand("a2"); len(got) != len(hand) {
		t.Error("Hand should follow the rebind")
	}
	if len(room.Hand("a")) != 0 {
		t.Error("Old hand key should be removed")
	}
	if turn := room.CurrentTurn(); turn == nil || turn.ID != "a2" {
		t.Error("Turn should still belong to the rebound player")
	}
}

func TestRebindMidAsk(t *testing.T) {
	room := newStartedRoom(t)
	assumption := game.Assumption{Suspect: "Professor Plum", Weapon: "Rope", Room: "Library"}

	result, err := room.BeginAsk("a", assumption, "")
	if err != nil {
		t.Fatalf("BeginAsk: %v", err)
	}
	if result.Prompt == nil || result.Prompt.PlayerID != "b" {
		t.Fatalf("Expected prompt for b, got %+v", result)
	}

	room.Rebind("b", "b2")

	prompt := room.PendingPrompt()
	if prompt == nil || prompt.PlayerID != "b2" {
		t.Fatalf("Pending prompt should follow the rebind, got %+v", prompt)
	}

	outcome, err := room.RespondToAsk("b2", "Rope")
	if err != nil {
		t.Fatalf("RespondToAsk after rebind: %v", err)
	}
	if outcome.Reveal == nil || outcome.Reveal.CardName != "Rope" {
		t.Errorf("Rebound responder should be able to show, got %+v", outcome)
	}
}
