package mystery

import "mystery-server/internal/game"

// AccuseOutcome is the resolution of a final guess. Correct guesses name the
// accuser as Winner. Wrong guesses set Eliminated, and may still produce a
// Winner when exactly one eligible player is left standing.
type AccuseOutcome struct {
	Correct      bool
	Solution     game.Assumption
	Winner       *Player
	Eliminated   *Player
	TurnAdvanced bool
}

// Accuse checks the named triple against the hidden solution. Any
// non-eliminated player may accuse at any time, turn or no turn. A wrong
// accusation permanently eliminates the accuser from asking and accusing,
// though they remain a valid responder to later suggestions.
func (r *Room) Accuse(playerID string, answer game.Assumption) (*AccuseOutcome, error) {
	if r.Finished {
		return nil, newError(CodeGameOver, "The game is over.")
	}
	accuser := r.PlayerByID(playerID)
	if accuser == nil {
		return nil, nil
	}
	if accuser.Eliminated {
		return nil, newError(CodeSpectator, "You are eliminated and can only spectate.")
	}
	if err := answer.Validate(); err != nil {
		return nil, newError(CodeBadInput, err.Error())
	}

	outcome := &AccuseOutcome{Solution: r.State.Solution}

	if answer.Equal(r.State.Solution) {
		r.Finished = true
		outcome.Correct = true
		outcome.Winner = accuser
		return outcome, nil
	}

	accuser.Eliminated = true
	outcome.Eliminated = accuser

	var remaining []*Player
	for _, p := range r.Players {
		if p.Eligible() {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == 1 {
		// Last player standing wins by default, no accusation required.
		r.Finished = true
		outcome.Winner = remaining[0]
		return outcome, nil
	}

	if current := r.CurrentTurn(); current != nil && current.ID == accuser.ID {
		r.State.TurnIndex = r.nextActiveTurnIndex(r.State.TurnIndex)
		outcome.TurnAdvanced = true
	}
	return outcome, nil
}
