package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mystery-server/internal/game"
	"mystery-server/internal/mystery"
)

var validate = validator.New()

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/qr", s.roomQRHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)

	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := json.Marshal(map[string]any{
		"status": "ok",
		"rooms":  s.registry.Count(),
	})
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		zap.L().Warn("Failed to write health response", zap.Error(err))
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	zap.L().Info("New connection", zap.String("connection", connectionID))
	s.connections.Add(connectionID, socket)
	defer s.handleDisconnect(connectionID)

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			zap.L().Debug("Connection read ended", zap.String("connection", connectionID), zap.Error(err))
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		if !s.limiter.Allow(connectionID) {
			s.send(connectionID, "error", RoomError{Code: "RATE_LIMITED", Message: "Too many messages. Slow down."})
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.send(connectionID, "error", RoomError{Code: mystery.CodeBadInput, Message: "Invalid JSON."})
			continue
		}

		s.route(connectionID, msg)
	}
}

func (s *Server) route(connectionID string, msg ClientMessage) {
	switch msg.Type {
	case "ping":
		s.send(connectionID, "pong", struct{}{})
	case "room:create":
		s.handleCreateRoom(connectionID, msg.Payload)
	case "room:join":
		s.handleJoinRoom(connectionID, msg.Payload)
	case "room:leave":
		s.handleLeaveRoom(connectionID, msg.Payload)
	case "lobby:ready":
		s.handleReady(connectionID, msg.Payload)
	case "lobby:chat":
		s.handleChat(connectionID, msg.Payload)
	case "game:start":
		s.handleStartGame(connectionID, msg.Payload)
	case "game:ask":
		s.handleAsk(connectionID, msg.Payload)
	case "game:showCard":
		s.handleShowCard(connectionID, msg.Payload)
	case "game:accuse":
		s.handleAccuse(connectionID, msg.Payload)
	default:
		s.send(connectionID, "error", RoomError{
			Code:    mystery.CodeBadInput,
			Message: fmt.Sprintf("Unknown message type: %s", msg.Type),
		})
	}
}

// decodePayload unmarshals and shape-checks a request payload. Game-semantic
// validation (card names, turn order) stays in the state machine.
func decodePayload(payload json.RawMessage, dst any) error {
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, dst); err != nil {
			return err
		}
	}
	return validate.Struct(dst)
}

func (s *Server) send(playerID, msgType string, payload any) {
	if err := s.connections.Send(playerID, ServerMessage{Type: msgType, Payload: payload}); err != nil {
		zap.L().Warn("Failed to send message",
			zap.String("type", msgType),
			zap.String("to", playerID),
			zap.Error(err))
	}
}

// sendGameError routes a rejection to the offending client only. Show/skip
// validation failures use their own event so the client can re-prompt.
func (s *Server) sendGameError(playerID string, err error) {
	var gameErr *mystery.Error
	if errors.As(err, &gameErr) {
		if gameErr.Code == mystery.CodeShowInvalid {
			s.send(playerID, "game:showCard:invalid", ShowCardInvalidNotification{Message: gameErr.Message})
			return
		}
		s.send(playerID, "room:error", roomErrorPayload(gameErr))
		return
	}
	s.send(playerID, "room:error", RoomError{Code: mystery.CodeBadInput, Message: err.Error()})
}

func (s *Server) sendBadPayload(playerID, msgType string) {
	s.send(playerID, "room:error", RoomError{
		Code:    mystery.CodeBadInput,
		Message: fmt.Sprintf("Invalid %s payload.", msgType),
	})
}

// broadcast sends to every connected player in the room. Callers hold the
// room lock; sends are best-effort and never roll back state.
func (s *Server) broadcast(room *mystery.Room, msgType string, payload any) {
	for _, p := range room.Players {
		if !p.IsConnected {
			continue
		}
		s.send(p.ID, msgType, payload)
	}
}

func (s *Server) lobbyPayload(room *mystery.Room) LobbyState {
	players := make([]PlayerInfo, len(room.Players))
	for i, p := range room.Players {
		players[i] = PlayerInfo{
			ID:          p.ID,
			Name:        p.Name,
			Avatar:      p.Avatar,
			IsReady:     p.IsReady,
			IsConnected: p.IsConnected,
			Eliminated:  p.Eliminated,
			IsHost:      p.ID == room.HostID,
		}
	}
	return LobbyState{
		Room: RoomInfo{
			Code:       room.Code,
			Name:       room.Name,
			MaxPlayers: room.MaxPlayers,
			IsPrivate:  room.IsPrivate,
			HostID:     room.HostID,
			Started:    room.Started,
			CreatedAt:  room.CreatedAt.UTC().Format(time.RFC3339),
		},
		Players: players,
	}
}

func (s *Server) broadcastLobby(room *mystery.Room) {
	s.broadcast(room, "lobby:state", s.lobbyPayload(room))
}

func (s *Server) broadcastGamePlayers(room *mystery.Room) {
	s.broadcast(room, "game:players", s.lobbyPayload(room))
}

func (s *Server) emitTurn(room *mystery.Room) {
	turnPlayer := room.CurrentTurn()
	if turnPlayer == nil {
		return
	}
	s.broadcast(room, "game:turn", TurnNotification{
		TurnPlayerID:   turnPlayer.ID,
		TurnPlayerName: turnPlayer.Name,
		TurnIndex:      room.State.TurnIndex,
	})
}

func (s *Server) deliverPrompt(prompt *mystery.Prompt) {
	s.send(prompt.PlayerID, "game:prompt", PromptNotification{
		FromPlayerID:   prompt.FromID,
		FromPlayerName: prompt.FromName,
		Assumption:     prompt.Assumption,
	})
}

// emitNoShow announces that nobody could show a card, then the new turn.
func (s *Server) emitNoShow(room *mystery.Room) {
	s.broadcast(room, "game:cardShown", CardShownNotification{FromPlayerID: nil, FromPlayerName: "No one"})
	s.emitTurn(room)
}

// handleDisconnect runs when a socket's read loop ends for any reason. The
// seat is kept so the player can rejoin with the same session id; the
// machine just stops waiting on them.
func (s *Server) handleDisconnect(connectionID string) {
	roomCode := s.connections.RoomOf(connectionID)
	s.connections.Remove(connectionID)
	s.limiter.RemoveConnection(connectionID)
	zap.L().Info("Connection closed", zap.String("connection", connectionID))

	if roomCode == "" {
		return
	}
	room := s.registry.Get(roomCode)
	if room == nil {
		return
	}

	room.Lock()
	defer room.Unlock()

	update := room.MarkDisconnected(connectionID)
	if update == nil {
		return
	}

	if !room.Started {
		s.broadcastLobby(room)
		return
	}

	s.broadcastGamePlayers(room)
	if update.Prompt != nil {
		s.deliverPrompt(update.Prompt)
	}
	if update.NoShow {
		s.emitNoShow(room)
	} else if update.TurnAdvanced {
		s.emitTurn(room)
	}
}

func (s *Server) handleCreateRoom(connectionID string, payload json.RawMessage) {
	var req CreateRoomRequest
	if err := decodePayload(payload, &req); err != nil {
		s.sendBadPayload(connectionID, "room:create")
		return
	}

	sessionID := sanitizeSessionID(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	room, err := s.registry.Create(sanitizeRoomName(req.RoomName), clampMaxPlayers(req.MaxPlayers), req.IsPrivate)
	if err != nil {
		s.sendGameError(connectionID, err)
		return
	}

	room.Lock()
	defer room.Unlock()

	host := &mystery.Player{
		ID:          connectionID,
		SessionID:   sessionID,
		Name:        sanitizeName(req.PlayerName, "Host"),
		Avatar:      sanitizeAvatar(req.PlayerAvatar),
		IsConnected: true,
	}
	if err := room.AddPlayer(host); err != nil {
		s.sendGameError(connectionID, err)
		return
	}

	s.connections.BindRoom(connectionID, room.Code)
	s.sessions.Bind(sessionID, room.Code)

	zap.L().Info("Room created",
		zap.String("room", room.Code),
		zap.String("host", host.Name),
		zap.Int("maxPlayers", room.MaxPlayers))

	s.send(connectionID, "room:created", RoomCreatedResponse{
		RoomCode:   room.Code,
		RoomName:   room.Name,
		MaxPlayers: room.MaxPlayers,
		IsPrivate:  room.IsPrivate,
		HostID:     room.HostID,
		PlayerID:   connectionID,
	})
	s.broadcastLobby(room)
}

func (s *Server) handleJoinRoom(connectionID string, payload json.RawMessage) {
	var req JoinRoomRequest
	if err := decodePayload(payload, &req); err != nil {
		s.sendBadPayload(connectionID, "room:join")
		return
	}

	sessionID := sanitizeSessionID(req.SessionID)

	room := s.registry.Get(req.RoomCode)
	if room == nil && sessionID != "" {
		// Session index lets a refreshed client come back without the code.
		room = s.registry.Get(s.sessions.Lookup(sessionID))
	}
	if room == nil {
		s.send(connectionID, "room:error", RoomError{
			Code:    mystery.CodeRoomNotFound,
			Message: "Room not found. Check the code and try again.",
		})
		return
	}

	room.Lock()
	defer room.Unlock()

	playerName := sanitizeName(req.PlayerName, fmt.Sprintf("Player %d", len(room.Players)+1))
	avatar := sanitizeAvatar(req.PlayerAvatar)

	joined := func(rejoined bool) RoomJoinedResponse {
		return RoomJoinedResponse{
			RoomCode:   room.Code,
			RoomName:   room.Name,
			MaxPlayers: room.MaxPlayers,
			IsPrivate:  room.IsPrivate,
			HostID:     room.HostID,
			PlayerID:   connectionID,
			Started:    room.Started,
			Rejoined:   rejoined,
		}
	}

	// Same person on a new connection: rebind instead of seating them twice.
	if existing := room.PlayerBySession(sessionID); existing != nil && existing.ID != connectionID {
		oldID := existing.ID
		if oldConn := s.connections.Get(oldID); oldConn != nil {
			oldConn.Close(websocket.StatusNormalClosure, "Connected from another device")
		}
		s.connections.Remove(oldID)

		existing.Name = playerName
		existing.Avatar = avatar
		existing.IsConnected = true
		room.Rebind(oldID, connectionID)
		s.connections.BindRoom(connectionID, room.Code)

		zap.L().Info("Player rebound",
			zap.String("room", room.Code),
			zap.String("player", playerName),
			zap.String("connection", connectionID))

		s.send(connectionID, "room:joined", joined(true))
		s.broadcastLobby(room)

		if room.Started {
			s.broadcastGamePlayers(room)
			s.emitTurn(room)
			s.send(connectionID, "game:hand", HandNotification{Cards: room.Hand(connectionID)})

			// A prompt pending on the old connection must not be lost.
			if prompt := room.PendingPrompt(); prompt != nil && prompt.PlayerID == connectionID {
				s.deliverPrompt(prompt)
			}
		}
		return
	}

	// Same connection re-issuing join: refresh details, idempotent.
	if existing := room.PlayerByID(connectionID); existing != nil {
		existing.Name = playerName
		existing.Avatar = avatar
		if sessionID != "" {
			existing.SessionID = sessionID
			s.sessions.Bind(sessionID, room.Code)
		}
		existing.IsConnected = true

		s.send(connectionID, "room:joined", joined(true))
		s.broadcastLobby(room)
		if room.Started {
			s.broadcastGamePlayers(room)
			s.emitTurn(room)
			s.send(connectionID, "game:hand", HandNotification{Cards: room.Hand(connectionID)})
		}
		return
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	p := &mystery.Player{
		ID:          connectionID,
		SessionID:   sessionID,
		Name:        playerName,
		Avatar:      avatar,
		IsConnected: true,
	}
	if err := room.AddPlayer(p); err != nil {
		s.sendGameError(connectionID, err)
		return
	}

	s.connections.BindRoom(connectionID, room.Code)
	s.sessions.Bind(sessionID, room.Code)

	s.send(connectionID, "room:joined", joined(false))
	s.broadcastLobby(room)
}

func (s *Server) handleLeaveRoom(connectionID string, payload json.RawMessage) {
	var req LeaveRoomRequest
	if err := decodePayload(payload, &req); err != nil {
		return
	}
	room := s.registry.Get(req.RoomCode)
	if room == nil {
		room = s.registry.FindByPlayer(connectionID)
	}
	if room == nil {
		return
	}

	room.Lock()
	defer room.Unlock()

	p := room.PlayerByID(connectionID)
	if p == nil {
		return
	}
	sessionID := p.SessionID

	if !room.Leave(connectionID) {
		return
	}
	s.connections.UnbindRoom(connectionID)
	s.sessions.Remove(sessionID)

	if !room.Started {
		s.broadcastLobby(room)
		if len(room.Players) == 0 {
			s.registry.Delete(room.Code)
		}
		return
	}

	// Leaving a started game frees any prompt or turn waiting on the seat.
	update := room.MarkDisconnected(connectionID)
	s.broadcastLobby(room)
	s.broadcastGamePlayers(room)
	if update == nil {
		return
	}
	if update.Prompt != nil {
		s.deliverPrompt(update.Prompt)
	}
	if update.NoShow {
		s.emitNoShow(room)
	} else if update.TurnAdvanced {
		s.emitTurn(room)
	}
}

func (s *Server) handleReady(connectionID string, payload json.RawMessage) {
	var req ReadyRequest
	if err := decodePayload(payload, &req); err != nil {
		return
	}
	room := s.registry.Get(req.RoomCode)
	if room == nil {
		return
	}

	room.Lock()
	defer room.Unlock()

	if room.Started {
		return
	}
	p := room.PlayerByID(connectionID)
	if p == nil {
		return
	}

	p.IsReady = req.IsReady
	s.broadcastLobby(room)
}

func (s *Server) handleChat(connectionID string, payload json.RawMessage) {
	var req ChatRequest
	if err := decodePayload(payload, &req); err != nil {
		s.sendBadPayload(connectionID, "lobby:chat")
		return
	}
	room := s.registry.Get(req.RoomCode)
	if room == nil {
		return
	}

	room.Lock()
	defer room.Unlock()

	p := room.PlayerByID(connectionID)
	if p == nil {
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return
	}

	s.broadcast(room, "lobby:chat", ChatMessage{
		ID:         uuid.New().String(),
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Text:       text,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStartGame(connectionID string, payload json.RawMessage) {
	var req StartGameRequest
	if err := decodePayload(payload, &req); err != nil {
		return
	}
	room := s.registry.Get(req.RoomCode)
	if room == nil {
		return
	}

	room.Lock()
	defer room.Unlock()

	if room.Started {
		return
	}
	if err := room.Start(connectionID); err != nil {
		s.sendGameError(connectionID, err)
		return
	}

	zap.L().Info("Game started",
		zap.String("room", room.Code),
		zap.Int("players", len(room.Players)))

	s.broadcast(room, "game:started", GameStartedNotification{
		RoomCode:  room.Code,
		RoomName:  room.Name,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	})
	s.broadcastGamePlayers(room)
	s.emitTurn(room)

	// Hands are private: one message per player.
	for _, p := range room.Players {
		s.send(p.ID, "game:hand", HandNotification{Cards: room.Hand(p.ID)})
	}
}

func (s *Server) handleAsk(connectionID string, payload json.RawMessage) {
	var req AskRequest
	if err := decodePayload(payload, &req); err != nil {
		s.sendBadPayload(connectionID, "game:ask")
		return
	}
	room := s.registry.Get(req.RoomCode)
	if room == nil {
		return
	}

	room.Lock()
	defer room.Unlock()

	if !room.Started {
		return
	}

	assumption := game.Assumption{Suspect: req.Suspect, Weapon: req.Weapon, Room: req.Room}
	result, err := room.BeginAsk(connectionID, assumption, req.TargetPlayerID)
	if err != nil {
		s.sendGameError(connectionID, err)
		return
	}

	asker := room.PlayerByID(connectionID)
	s.broadcast(room, "game:assumption", AssumptionNotification{
		FromPlayerID:     asker.ID,
		FromPlayerName:   asker.Name,
		Assumption:       assumption,
		TargetPlayerID:   result.TargetID,
		TargetPlayerName: result.TargetName,
	})

	if result.NoShow {
		s.emitNoShow(room)
		return
	}
	if result.Prompt != nil {
		s.deliverPrompt(result.Prompt)
	}
}

func (s *Server) handleShowCard(connectionID string, payload json.RawMessage) {
	var req ShowCardRequest
	if err := decodePayload(payload, &req); err != nil {
		return
	}
	room := s.registry.Get(req.RoomCode)
	if room == nil {
		return
	}

	room.Lock()
	defer room.Unlock()

	if !room.Started {
		return
	}

	outcome, err := room.RespondToAsk(connectionID, req.CardName)
	if err != nil {
		s.sendGameError(connectionID, err)
		return
	}
	if outcome == nil {
		return
	}

	switch {
	case outcome.Reveal != nil:
		reveal := outcome.Reveal
		s.send(reveal.AskerID, "game:cardRevealed", CardRevealedNotification{
			FromPlayerID:   reveal.ResponderID,
			FromPlayerName: reveal.ResponderName,
			CardName:       reveal.CardName,
		})
		responderID := reveal.ResponderID
		s.broadcast(room, "game:cardShown", CardShownNotification{
			FromPlayerID:   &responderID,
			FromPlayerName: reveal.ResponderName,
		})
		s.emitTurn(room)
	case outcome.Prompt != nil:
		s.deliverPrompt(outcome.Prompt)
	case outcome.NoShow:
		s.emitNoShow(room)
	}
}

func (s *Server) handleAccuse(connectionID string, payload json.RawMessage) {
	var req AccuseRequest
	if err := decodePayload(payload, &req); err != nil {
		s.sendBadPayload(connectionID, "game:accuse")
		return
	}
	room := s.registry.Get(req.RoomCode)
	if room == nil {
		return
	}

	room.Lock()
	defer room.Unlock()

	if !room.Started {
		return
	}

	answer := game.Assumption{Suspect: req.Suspect, Weapon: req.Weapon, Room: req.Room}
	outcome, err := room.Accuse(connectionID, answer)
	if err != nil {
		s.sendGameError(connectionID, err)
		return
	}
	if outcome == nil {
		return
	}

	if outcome.Correct {
		zap.L().Info("Game won by accusation",
			zap.String("room", room.Code),
			zap.String("winner", outcome.Winner.Name))
		s.broadcast(room, "game:winner", WinnerNotification{
			PlayerID:   outcome.Winner.ID,
			PlayerName: outcome.Winner.Name,
			Solution:   outcome.Solution,
		})
		s.recordResult(room, outcome.Winner.Name)
		return
	}

	s.broadcast(room, "game:eliminated", EliminatedNotification{
		PlayerID:   outcome.Eliminated.ID,
		PlayerName: outcome.Eliminated.Name,
	})

	if outcome.Winner != nil {
		// Everyone else got themselves eliminated: last player standing wins.
		s.broadcast(room, "game:winner", WinnerNotification{
			PlayerID:   outcome.Winner.ID,
			PlayerName: outcome.Winner.Name,
			Solution:   outcome.Solution,
		})
		s.recordResult(room, outcome.Winner.Name)
	} else if outcome.TurnAdvanced {
		s.emitTurn(room)
	}
	s.broadcastGamePlayers(room)
}

// recordResult archives a finished match without blocking the game event.
func (s *Server) recordResult(room *mystery.Room, winnerName string) {
	if s.archive == nil {
		return
	}
	rec := MatchRecord{
		RoomCode:    room.Code,
		WinnerName:  winnerName,
		Solution:    room.State.Solution,
		PlayerCount: len(room.Players),
		FinishedAt:  time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.archive.RecordResult(ctx, rec); err != nil {
			zap.L().Error("Failed to archive match result",
				zap.String("room", rec.RoomCode),
				zap.Error(err))
		}
	}()
}

func sanitizeName(s, fallback string) string {
	v := strings.TrimSpace(s)
	if v == "" {
		return fallback
	}
	runes := []rune(v)
	if len(runes) > 24 {
		runes = runes[:24]
	}
	return string(runes)
}

func sanitizeRoomName(s string) string {
	v := strings.TrimSpace(s)
	if v == "" {
		return "Mystery Room"
	}
	runes := []rune(v)
	if len(runes) > 36 {
		runes = runes[:36]
	}
	return string(runes)
}

func sanitizeAvatar(s string) string {
	if s == "" {
		return "detective"
	}
	return s
}

// sanitizeSessionID accepts UUIDs or short opaque tokens; anything shorter
// than 8 characters is treated as absent.
func sanitizeSessionID(s string) string {
	v := strings.TrimSpace(s)
	if len(v) < 8 {
		return ""
	}
	if len(v) > 64 {
		v = v[:64]
	}
	return v
}

func clampMaxPlayers(n int) int {
	if n == 0 {
		n = 4
	}
	if n < 3 {
		return 3
	}
	if n > 8 {
		return 8
	}
	return n
}
