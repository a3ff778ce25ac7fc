package mystery

import (
	"sync"
	"time"

	"mystery-server/internal/game"
)

// Player is one participant. ID is the volatile connection identity and is
// rewritten on reconnect; SessionID is the durable identity that recognizes
// a returning player.
type Player struct {
	ID          string `json:"id"`
	SessionID   string `json:"-"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	IsReady     bool   `json:"isReady"`
	IsConnected bool   `json:"isConnected"`
	Eliminated  bool   `json:"eliminated"`
}

// Eligible reports whether the player can take part in turn rotation and
// prompt queues.
func (p *Player) Eligible() bool {
	return p.IsConnected && !p.Eliminated
}

// Room is the aggregate root for one game. The embedded mutex serializes all
// mutations; handlers hold it for the full duration of an event so each
// event is applied atomically. Player order is fixed once the game starts,
// since turn order is index based.
type Room struct {
	sync.Mutex

	Code       string
	Name       string
	MaxPlayers int
	IsPrivate  bool
	HostID     string
	Started    bool
	Finished   bool
	CreatedAt  time.Time

	Players []*Player
	State   State
}

func NewRoom(code, name string, maxPlayers int, isPrivate bool) *Room {
	return &Room{
		Code:       code,
		Name:       name,
		MaxPlayers: maxPlayers,
		IsPrivate:  isPrivate,
		CreatedAt:  time.Now(),
		Players:    make([]*Player, 0, maxPlayers),
		State:      State{Hands: make(map[string][]string)},
	}
}

func (r *Room) PlayerByID(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) PlayerBySession(sessionID string) *Player {
	if sessionID == "" {
		return nil
	}
	for _, p := range r.Players {
		if p.SessionID == sessionID {
			return p
		}
	}
	return nil
}

func (r *Room) ConnectedCount() int {
	count := 0
	for _, p := range r.Players {
		if p.IsConnected {
			count++
		}
	}
	return count
}

// AddPlayer seats a new player. New joins are rejected once the game has
// started (only session rebinds get back in) and when the room is full.
func (r *Room) AddPlayer(p *Player) error {
	if r.Started {
		return newError(CodeAlreadyStarted, "Cannot join a game in progress.")
	}
	if len(r.Players) >= r.MaxPlayers {
		return newError(CodeRoomFull, "This room is full. Maximum players reached.")
	}
	r.Players = append(r.Players, p)
	if len(r.Players) == 1 {
		r.HostID = p.ID
	}
	return nil
}

// Leave removes the player pre-start, or marks them eliminated and
// disconnected once started (physical removal would corrupt turn order).
// Returns false if the player was not in the room.
func (r *Room) Leave(playerID string) bool {
	idx := -1
	for i, p := range r.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	wasHost := r.HostID == playerID

	if !r.Started {
		r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	} else {
		r.Players[idx].Eliminated = true
		r.Players[idx].IsConnected = false
	}

	if wasHost {
		r.transferHost()
	}
	return true
}

func (r *Room) transferHost() {
	for _, p := range r.Players {
		if p.Eligible() {
			r.HostID = p.ID
			return
		}
	}
	if len(r.Players) > 0 {
		r.HostID = r.Players[0].ID
		return
	}
	r.HostID = ""
}

// Start deals cards and opens turn rotation. Preconditions per the lobby
// rules: caller is host, at least 3 connected players, all connected
// players ready.
func (r *Room) Start(playerID string) error {
	if r.Started {
		return nil
	}
	if r.HostID != playerID {
		return newError(CodeNotHost, "Only the host can start the game.")
	}

	connected := 0
	allReady := true
	for _, p := range r.Players {
		if !p.IsConnected {
			continue
		}
		connected++
		if !p.IsReady {
			allReady = false
		}
	}
	if connected < 3 {
		return newError(CodeNotEnoughPlayers, "Need at least 3 players to start.")
	}
	if !allReady {
		return newError(CodeNotReady, "All connected players must be ready.")
	}

	r.Started = true
	ids := make([]string, len(r.Players))
	for i, p := range r.Players {
		p.Eliminated = false
		ids[i] = p.ID
	}

	deal := game.DealCards(ids)
	r.State.Solution = deal.Solution
	r.State.Hands = deal.Hands
	r.State.Phase = PhaseIdle
	r.State.Ask = nil

	// First turn goes to the host.
	r.State.TurnIndex = 0
	for i, p := range r.Players {
		if p.ID == r.HostID {
			r.State.TurnIndex = i
			break
		}
	}
	return nil
}

// Hand returns the player's cards, never nil.
func (r *Room) Hand(playerID string) []string {
	if cards, ok := r.State.Hands[playerID]; ok {
		return cards
	}
	return []string{}
}

// CurrentTurn returns the player at the turn index, or nil on an out-of-range
// index (possible transiently when a room empties).
func (r *Room) CurrentTurn() *Player {
	if r.State.TurnIndex < 0 || r.State.TurnIndex >= len(r.Players) {
		return nil
	}
	return r.Players[r.State.TurnIndex]
}

// nextActiveTurnIndex scans forward cyclically from the given index for the
// next connected, non-eliminated player. If no player qualifies the index is
// returned unchanged and the room stalls until someone reconnects.
func (r *Room) nextActiveTurnIndex(fromIndex int) int {
	n := len(r.Players)
	if n == 0 {
		return 0
	}
	idx := fromIndex
	for i := 0; i < n; i++ {
		idx = (idx + 1) % n
		if r.Players[idx].Eligible() {
			return idx
		}
	}
	return fromIndex
}

// Rebind atomically rewrites every state field that can reference the old
// connection id: player identity, host, hand ownership, and the in-flight
// ask's asker, target, queue entries and pending prompt.
func (r *Room) Rebind(oldID, newID string) {
	if oldID == "" || newID == "" || oldID == newID {
		return
	}

	for _, p := range r.Players {
		if p.ID == oldID {
			p.ID = newID
		}
	}
	if r.HostID == oldID {
		r.HostID = newID
	}

	if cards, ok := r.State.Hands[oldID]; ok {
		r.State.Hands[newID] = cards
		delete(r.State.Hands, oldID)
	}

	if ask := r.State.Ask; ask != nil {
		if ask.FromID == oldID {
			ask.FromID = newID
		}
		if ask.TargetID == oldID {
			ask.TargetID = newID
		}
		for i, id := range ask.PromptQueue {
			if id == oldID {
				ask.PromptQueue[i] = newID
			}
		}
		if ask.CurrentPromptID == oldID {
			ask.CurrentPromptID = newID
		}
	}
}
