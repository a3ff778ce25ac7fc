package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
)

func setupTestServer() (*Server, string, func()) {
	s := &Server{
		publicURL:   "http://localhost:3000",
		registry:    NewRegistry(),
		connections: NewConnectionManager(),
		sessions:    NewSessionIndex(),
		limiter:     NewRateLimiter(100, time.Second),
	}

	server := httptest.NewServer(http.HandlerFunc(s.websocketHandler))
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	return s, url, server.Close
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := ClientMessage{Type: msgType}
	if payload != nil {
		msg.Payload = mustMarshal(payload)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, mustMarshal(msg)); err != nil {
		t.Fatalf("Failed to send %s: %v", msgType, err)
	}
}

func readMsg(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

// readUntil skips messages until one of the wanted type arrives and decodes
// its payload into dst.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string, dst any) {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readMsg(t, conn)
		if msg.Type != msgType {
			continue
		}
		if dst != nil {
			payloadBytes, _ := json.Marshal(msg.Payload)
			if err := json.Unmarshal(payloadBytes, dst); err != nil {
				t.Fatalf("Failed to decode %s payload: %v", msgType, err)
			}
		}
		return
	}
	t.Fatalf("Never received a %s message", msgType)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestWebSocketPingPong(t *testing.T) {
	_, url, cleanup := setupTestServer()
	defer cleanup()

	conn := dial(t, url)
	sendMsg(t, conn, "ping", nil)

	msg := readMsg(t, conn)
	assert.Equal(t, "pong", msg.Type)
}

func TestWebSocketUnknownType(t *testing.T) {
	_, url, cleanup := setupTestServer()
	defer cleanup()

	conn := dial(t, url)
	sendMsg(t, conn, "game:cheat", nil)

	msg := readMsg(t, conn)
	assert.Equal(t, "error", msg.Type)
}

func TestWebSocketRateLimiting(t *testing.T) {
	s, url, cleanup := setupTestServer()
	defer cleanup()
	s.limiter = NewRateLimiter(2, time.Second)

	conn := dial(t, url)

	sendMsg(t, conn, "ping", nil)
	sendMsg(t, conn, "ping", nil)
	sendMsg(t, conn, "ping", nil)

	types := []string{readMsg(t, conn).Type, readMsg(t, conn).Type, readMsg(t, conn).Type}
	assert.Equal(t, []string{"pong", "pong", "error"}, types)
}

func TestCreateRoom(t *testing.T) {
	assert := assert.New(t)
	s, url, cleanup := setupTestServer()
	defer cleanup()

	conn := dial(t, url)
	sendMsg(t, conn, "room:create", CreateRoomRequest{
		RoomName:   "Friday Mystery",
		MaxPlayers: 4,
		PlayerName: "Alice",
		SessionID:  "session-alice-1",
	})

	var created RoomCreatedResponse
	readUntil(t, conn, "room:created", &created)

	assert.Equal(6, len(created.RoomCode))
	assert.Equal("Friday Mystery", created.RoomName)
	assert.Equal(4, created.MaxPlayers)
	assert.Equal(created.HostID, created.PlayerID)

	var lobby LobbyState
	readUntil(t, conn, "lobby:state", &lobby)
	assert.Len(lobby.Players, 1)
	assert.Equal("Alice", lobby.Players[0].Name)
	assert.True(lobby.Players[0].IsHost)

	assert.NotNil(s.registry.Get(created.RoomCode))
}

func TestJoinRoom(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	host := dial(t, url)
	sendMsg(t, host, "room:create", CreateRoomRequest{PlayerName: "Alice", SessionID: "session-alice-1"})
	var created RoomCreatedResponse
	readUntil(t, host, "room:created", &created)

	guest := dial(t, url)
	sendMsg(t, guest, "room:join", JoinRoomRequest{
		RoomCode:   created.RoomCode,
		PlayerName: "Bob",
		SessionID:  "session-bob-1",
	})

	var joined RoomJoinedResponse
	readUntil(t, guest, "room:joined", &joined)
	assert.Equal(created.RoomCode, joined.RoomCode)
	assert.False(joined.Rejoined)
	assert.NotEqual(joined.HostID, joined.PlayerID)

	// Both sides see the two player lobby.
	var lobby LobbyState
	readUntil(t, guest, "lobby:state", &lobby)
	assert.Len(lobby.Players, 2)

	readUntil(t, host, "lobby:state", &lobby)
	readUntil(t, host, "lobby:state", &lobby)
	assert.Len(lobby.Players, 2)
}

func TestJoinRoomNotFound(t *testing.T) {
	_, url, cleanup := setupTestServer()
	defer cleanup()

	conn := dial(t, url)
	sendMsg(t, conn, "room:join", JoinRoomRequest{RoomCode: "ZZZZZZ", PlayerName: "Bob"})

	var roomErr RoomError
	readUntil(t, conn, "room:error", &roomErr)
	assert.Equal(t, "ROOM_NOT_FOUND", roomErr.Code)
}

func TestSessionRejoinKicksOldConnection(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	first := dial(t, url)
	sendMsg(t, first, "room:create", CreateRoomRequest{PlayerName: "Alice", SessionID: "session-alice-1"})
	var created RoomCreatedResponse
	readUntil(t, first, "room:created", &created)

	// Same session arrives on a fresh connection, as after a page refresh.
	second := dial(t, url)
	sendMsg(t, second, "room:join", JoinRoomRequest{
		RoomCode:   created.RoomCode,
		PlayerName: "Alice",
		SessionID:  "session-alice-1",
	})

	var joined RoomJoinedResponse
	readUntil(t, second, "room:joined", &joined)
	assert.True(joined.Rejoined)
	assert.NotEqual(created.PlayerID, joined.PlayerID)
	assert.Equal(joined.PlayerID, joined.HostID, "host identity should follow the rebind")

	var lobby LobbyState
	readUntil(t, second, "lobby:state", &lobby)
	assert.Len(lobby.Players, 1, "rebinding must not seat the player twice")
}

func TestSessionRejoinWithoutRoomCode(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	first := dial(t, url)
	sendMsg(t, first, "room:create", CreateRoomRequest{PlayerName: "Alice", SessionID: "session-alice-1"})
	var created RoomCreatedResponse
	readUntil(t, first, "room:created", &created)

	second := dial(t, url)
	sendMsg(t, second, "room:join", JoinRoomRequest{PlayerName: "Alice", SessionID: "session-alice-1"})

	var joined RoomJoinedResponse
	readUntil(t, second, "room:joined", &joined)
	assert.Equal(created.RoomCode, joined.RoomCode)
	assert.True(joined.Rejoined)
}

func TestLobbyChat(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	conn := dial(t, url)
	sendMsg(t, conn, "room:create", CreateRoomRequest{PlayerName: "Alice", SessionID: "session-alice-1"})
	var created RoomCreatedResponse
	readUntil(t, conn, "room:created", &created)

	sendMsg(t, conn, "lobby:chat", ChatRequest{RoomCode: created.RoomCode, Text: "  hello there  "})

	var chat ChatMessage
	readUntil(t, conn, "lobby:chat", &chat)
	assert.Equal("hello there", chat.Text)
	assert.Equal("Alice", chat.PlayerName)
	assert.NotEmpty(chat.ID)
}

func TestStartGameFlow(t *testing.T) {
	assert := assert.New(t)
	_, url, cleanup := setupTestServer()
	defer cleanup()

	host := dial(t, url)
	sendMsg(t, host, "room:create", CreateRoomRequest{PlayerName: "Alice", SessionID: "session-alice-1"})
	var created RoomCreatedResponse
	readUntil(t, host, "room:created", &created)

	conns := map[string]*websocket.Conn{"Alice": host}
	for _, name := range []string{"Bob", "Carol"} {
		conn := dial(t, url)
		sendMsg(t, conn, "room:join", JoinRoomRequest{
			RoomCode:   created.RoomCode,
			PlayerName: name,
			SessionID:  "session-" + name,
		})
		readUntil(t, conn, "room:joined", nil)
		conns[name] = conn
	}

	// Starting before everyone is ready is rejected.
	sendMsg(t, host, "game:start", StartGameRequest{RoomCode: created.RoomCode})
	var roomErr RoomError
	readUntil(t, host, "room:error", &roomErr)
	assert.Equal("NOT_READY", roomErr.Code)

	for _, conn := range conns {
		sendMsg(t, conn, "lobby:ready", ReadyRequest{RoomCode: created.RoomCode, IsReady: true})
	}
	// Readies arrive on independent connections; wait until the lobby
	// broadcast shows all three applied before starting.
	for {
		var lobby LobbyState
		readUntil(t, host, "lobby:state", &lobby)
		ready := 0
		for _, p := range lobby.Players {
			if p.IsReady {
				ready++
			}
		}
		if ready == 3 {
			break
		}
	}

	sendMsg(t, host, "game:start", StartGameRequest{RoomCode: created.RoomCode})

	readUntil(t, host, "game:started", nil)

	var turn TurnNotification
	readUntil(t, host, "game:turn", &turn)
	assert.Equal("Alice", turn.TurnPlayerName)

	// Every player receives a private, non-empty hand.
	total := 0
	for name, conn := range conns {
		var hand HandNotification
		readUntil(t, conn, "game:hand", &hand)
		assert.NotEmpty(hand.Cards, "player %s should have cards", name)
		total += len(hand.Cards)
	}
	assert.Equal(18, total, "21 cards minus the 3 card solution")
}

func TestHealthHandler(t *testing.T) {
	s, _, cleanup := setupTestServer()
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRoomQRHandler(t *testing.T) {
	assert := assert.New(t)
	s, _, cleanup := setupTestServer()
	defer cleanup()

	room, err := s.registry.Create("Test", 4, false)
	assert.NoError(err)

	rec := httptest.NewRecorder()
	s.roomQRHandler(rec, httptest.NewRequest(http.MethodGet, "/qr?code="+room.Code, nil))
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("image/png", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	s.roomQRHandler(rec, httptest.NewRequest(http.MethodGet, "/qr?code=ZZZZZZ", nil))
	assert.Equal(http.StatusNotFound, rec.Code)
}
