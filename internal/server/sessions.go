package server

import "sync"

// SessionIndex maps a durable session id to the room it last joined, letting
// a reconnecting client resume without re-supplying the room code. It is a
// lookup hint only; the room's player list stays authoritative.
type SessionIndex struct {
	mu    sync.RWMutex
	rooms map[string]string // session id -> room code
}

func NewSessionIndex() *SessionIndex {
	return &SessionIndex{
		rooms: make(map[string]string),
	}
}

func (si *SessionIndex) Bind(sessionID, roomCode string) {
	if sessionID == "" {
		return
	}
	si.mu.Lock()
	defer si.mu.Unlock()
	si.rooms[sessionID] = roomCode
}

func (si *SessionIndex) Lookup(sessionID string) string {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return si.rooms[sessionID]
}

// Remove is used for players who intentionally leave.
func (si *SessionIndex) Remove(sessionID string) {
	si.mu.Lock()
	defer si.mu.Unlock()
	delete(si.rooms, sessionID)
}
