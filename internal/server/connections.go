package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
)

// ConnectionManager tracks live sockets by connection id and remembers which
// room each connection has joined, so the disconnect path can find the room
// without scanning the registry.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn
	rooms map[string]string // connection id -> room code
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		conns: make(map[string]*websocket.Conn),
		rooms: make(map[string]string),
	}
}

func (cm *ConnectionManager) Add(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conns[id] = conn
}

func (cm *ConnectionManager) Remove(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.conns, id)
	delete(cm.rooms, id)
}

func (cm *ConnectionManager) Get(id string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conns[id]
}

// BindRoom records the room a connection belongs to.
func (cm *ConnectionManager) BindRoom(id, roomCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.rooms[id] = roomCode
}

func (cm *ConnectionManager) UnbindRoom(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.rooms, id)
}

func (cm *ConnectionManager) RoomOf(id string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.rooms[id]
}

// Send marshals and delivers a message to one connection. Unknown
// connections are a no-op: deliveries race with disconnects by design.
func (cm *ConnectionManager) Send(id string, msg ServerMessage) error {
	conn := cm.Get(id)
	if conn == nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(context.Background(), websocket.MessageText, data)
}

// CloseAll closes every socket, used during shutdown.
func (cm *ConnectionManager) CloseAll(reason string) {
	cm.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(cm.conns))
	for _, conn := range cm.conns {
		conns = append(conns, conn)
	}
	cm.conns = make(map[string]*websocket.Conn)
	cm.rooms = make(map[string]string)
	cm.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.StatusGoingAway, reason)
	}
}
