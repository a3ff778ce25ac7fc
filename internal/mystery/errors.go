package mystery

// Error codes surfaced to clients alongside a human-readable message.
const (
	CodeRoomNotFound     = "ROOM_NOT_FOUND"
	CodeRoomFull         = "ROOM_FULL"
	CodeAlreadyStarted   = "GAME_ALREADY_STARTED"
	CodeCreateFailed     = "CREATE_FAILED"
	CodeNotHost          = "NOT_HOST"
	CodeNotEnoughPlayers = "NOT_ENOUGH_PLAYERS"
	CodeNotReady         = "NOT_READY"
	CodeNotYourTurn      = "NOT_YOUR_TURN"
	CodeAskInProgress    = "ASK_IN_PROGRESS"
	CodeBadInput         = "BAD_INPUT"
	CodeSpectator        = "SPECTATOR"
	CodeGameOver         = "GAME_OVER"

	// CodeShowInvalid is local to the responder: it maps to the
	// game:showCard:invalid event rather than a room:error.
	CodeShowInvalid = "SHOW_INVALID"
)

// Error is a precondition violation rejected before any state mutation.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrCode extracts the machine code from an error, or "" for non-game errors.
func ErrCode(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
