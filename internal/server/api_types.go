package server

import (
	"mystery-server/internal/game"
	"mystery-server/internal/mystery"
)

// ============================================================================
// ERRORS (room:error)
// ============================================================================
type RoomError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ============================================================================
// ROOM LIFECYCLE (room:create / room:join / room:leave)
// ============================================================================
type CreateRoomRequest struct {
	RoomName     string `json:"roomName"`
	MaxPlayers   int    `json:"maxPlayers"`
	IsPrivate    bool   `json:"isPrivate"`
	PlayerName   string `json:"playerName" validate:"max=64"`
	PlayerAvatar string `json:"playerAvatar"`
	SessionID    string `json:"sessionId" validate:"max=64"`
}

type RoomCreatedResponse struct {
	RoomCode   string `json:"roomCode"`
	RoomName   string `json:"roomName"`
	MaxPlayers int    `json:"maxPlayers"`
	IsPrivate  bool   `json:"isPrivate"`
	HostID     string `json:"hostId"`
	PlayerID   string `json:"playerId"`
}

type JoinRoomRequest struct {
	RoomCode     string `json:"roomCode"`
	PlayerName   string `json:"playerName" validate:"max=64"`
	PlayerAvatar string `json:"playerAvatar"`
	SessionID    string `json:"sessionId" validate:"max=64"`
}

type RoomJoinedResponse struct {
	RoomCode   string `json:"roomCode"`
	RoomName   string `json:"roomName"`
	MaxPlayers int    `json:"maxPlayers"`
	IsPrivate  bool   `json:"isPrivate"`
	HostID     string `json:"hostId"`
	PlayerID   string `json:"playerId"`
	Started    bool   `json:"started"`
	Rejoined   bool   `json:"rejoined,omitempty"`
}

type LeaveRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

// ============================================================================
// LOBBY (lobby:state broadcast, lobby:ready, lobby:chat)
// ============================================================================
type RoomInfo struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	MaxPlayers int    `json:"maxPlayers"`
	IsPrivate  bool   `json:"isPrivate"`
	HostID     string `json:"hostId"`
	Started    bool   `json:"started"`
	CreatedAt  string `json:"createdAt"`
}

type PlayerInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	IsReady     bool   `json:"isReady"`
	IsConnected bool   `json:"isConnected"`
	Eliminated  bool   `json:"eliminated"`
	IsHost      bool   `json:"isHost"`
}

// LobbyState doubles as the game:players payload once the game has started.
type LobbyState struct {
	Room    RoomInfo     `json:"room"`
	Players []PlayerInfo `json:"players"`
}

type ReadyRequest struct {
	RoomCode string `json:"roomCode"`
	IsReady  bool   `json:"isReady"`
}

type ChatRequest struct {
	RoomCode string `json:"roomCode"`
	Text     string `json:"text" validate:"max=500"`
}

type ChatMessage struct {
	ID         string `json:"id"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp"`
}

// ============================================================================
// GAME FLOW (game:start / game:ask / game:showCard / game:accuse)
// ============================================================================
type StartGameRequest struct {
	RoomCode string `json:"roomCode"`
}

type GameStartedNotification struct {
	RoomCode  string `json:"roomCode"`
	RoomName  string `json:"roomName"`
	StartedAt string `json:"startedAt"`
}

type TurnNotification struct {
	TurnPlayerID   string `json:"turnPlayerId"`
	TurnPlayerName string `json:"turnPlayerName"`
	TurnIndex      int    `json:"turnIndex"`
}

type HandNotification struct {
	Cards []string `json:"cards"`
}

type AskRequest struct {
	RoomCode       string `json:"roomCode"`
	Suspect        string `json:"suspect" validate:"required"`
	Weapon         string `json:"weapon" validate:"required"`
	Room           string `json:"room" validate:"required"`
	TargetPlayerID string `json:"targetPlayerId"`
}

type AssumptionNotification struct {
	FromPlayerID     string          `json:"fromPlayerId"`
	FromPlayerName   string          `json:"fromPlayerName"`
	Assumption       game.Assumption `json:"assumption"`
	TargetPlayerID   string          `json:"targetPlayerId,omitempty"`
	TargetPlayerName string          `json:"targetPlayerName,omitempty"`
}

type PromptNotification struct {
	FromPlayerID   string          `json:"fromPlayerId"`
	FromPlayerName string          `json:"fromPlayerName"`
	Assumption     game.Assumption `json:"assumption"`
}

type ShowCardRequest struct {
	RoomCode string `json:"roomCode"`
	CardName string `json:"cardName"`
}

// CardShownNotification is public: it never carries the card name. A nil
// FromPlayerID means nobody could show.
type CardShownNotification struct {
	FromPlayerID   *string `json:"fromPlayerId"`
	FromPlayerName string  `json:"fromPlayerName"`
}

// CardRevealedNotification goes privately to the asker only.
type CardRevealedNotification struct {
	FromPlayerID   string `json:"fromPlayerId"`
	FromPlayerName string `json:"fromPlayerName"`
	CardName       string `json:"cardName"`
}

type ShowCardInvalidNotification struct {
	Message string `json:"message"`
}

type AccuseRequest struct {
	RoomCode string `json:"roomCode"`
	Suspect  string `json:"suspect" validate:"required"`
	Weapon   string `json:"weapon" validate:"required"`
	Room     string `json:"room" validate:"required"`
}

type WinnerNotification struct {
	PlayerID   string          `json:"playerId"`
	PlayerName string          `json:"playerName"`
	Solution   game.Assumption `json:"solution"`
}

type EliminatedNotification struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

func roomErrorPayload(err *mystery.Error) RoomError {
	return RoomError{Code: err.Code, Message: err.Message}
}
