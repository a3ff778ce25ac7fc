package server

import (
	"sync"
	"time"

	"mystery-server/internal/mystery"
)

// lobbyExpiry is how long an empty, never-started room survives before the
// sweeper reclaims it.
const lobbyExpiry = 10 * time.Minute

// Registry is the process-wide mapping of room code to room aggregate.
// Nothing in it survives a restart. The registry mutex only guards the map;
// each room carries its own lock for state mutation.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*mystery.Room
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*mystery.Room),
	}
}

// Create allocates a room under a fresh unique code. The code space is
// large, so a handful of attempts is plenty; exhausting them is reported as
// CREATE_FAILED rather than looping forever.
func (reg *Registry) Create(name string, maxPlayers int, isPrivate bool) (*mystery.Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for i := 0; i < 10; i++ {
		code := GenerateRoomCode()
		if _, taken := reg.rooms[code]; taken {
			continue
		}
		room := mystery.NewRoom(code, name, maxPlayers, isPrivate)
		reg.rooms[code] = room
		return room, nil
	}
	return nil, &mystery.Error{Code: mystery.CodeCreateFailed, Message: "Could not create room. Try again."}
}

// Get returns the room for a (raw, unnormalized) code, or nil.
func (reg *Registry) Get(code string) *mystery.Room {
	key := NormalizeRoomCode(code)
	if key == "" {
		return nil
	}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[key]
}

func (reg *Registry) Delete(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, NormalizeRoomCode(code))
}

func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

func (reg *Registry) all() []*mystery.Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rooms := make([]*mystery.Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// FindByPlayer locates the room containing the given connection id.
func (reg *Registry) FindByPlayer(playerID string) *mystery.Room {
	for _, room := range reg.all() {
		room.Lock()
		found := room.PlayerByID(playerID) != nil
		room.Unlock()
		if found {
			return room
		}
	}
	return nil
}

// Sweep reclaims rooms nobody will come back to: expired empty lobbies and
// finished games with everyone gone. Started, unfinished rooms are retained
// indefinitely so players can reconnect.
func (reg *Registry) Sweep(now time.Time) int {
	removed := 0
	for _, room := range reg.all() {
		room.Lock()
		stale := room.ConnectedCount() == 0 &&
			((!room.Started && now.Sub(room.CreatedAt) > lobbyExpiry) || room.Finished)
		code := room.Code
		room.Unlock()

		if stale {
			reg.Delete(code)
			removed++
		}
	}
	return removed
}
