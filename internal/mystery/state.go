package mystery

import (
	"time"

	"mystery-server/internal/game"
)

// Phase is the suggestion machine's state. PhaseAwaitingResponse holds
// exactly while State.Ask is non-nil.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingResponse
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingResponse:
		return "awaitingResponse"
	}
	return "unknown"
}

// Ask is an in-flight suggestion being resolved across the prompt queue.
// All ids are connection ids; Rebind rewrites them on reconnect.
type Ask struct {
	FromID          string          `json:"fromId"`
	Assumption      game.Assumption `json:"assumption"`
	TargetID        string          `json:"targetId,omitempty"`
	PromptQueue     []string        `json:"promptQueue"`
	CurrentPromptID string          `json:"currentPromptId,omitempty"`
	AskedAt         time.Time       `json:"askedAt"`
}

// State is the per-room mutable game state, valid once the game has started.
type State struct {
	TurnIndex int
	Solution  game.Assumption
	Hands     map[string][]string
	Phase     Phase
	Ask       *Ask
}
