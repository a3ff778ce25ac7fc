package mystery

import (
	"time"

	"mystery-server/internal/game"
)

// Prompt asks one player to show or skip against an assumption. It is
// delivered privately to PlayerID.
type Prompt struct {
	PlayerID   string
	FromID     string
	FromName   string
	Assumption game.Assumption
}

// AskResult describes what happened when a suggestion was opened. Exactly
// one of Prompt and NoShow is set: either somebody is being prompted, or the
// queue came up empty, the ask resolved as "no one could show" and the turn
// already advanced.
type AskResult struct {
	TargetID   string
	TargetName string
	Prompt     *Prompt
	NoShow     bool
}

// BeginAsk transitions Idle -> AwaitingResponse for the player holding the
// turn. The prompt queue is the named target if eligible, or every other
// connected player clockwise from the asker.
func (r *Room) BeginAsk(playerID string, assumption game.Assumption, targetID string) (*AskResult, error) {
	if r.Finished {
		return nil, newError(CodeGameOver, "The game is over.")
	}

	asker := r.CurrentTurn()
	if asker == nil || asker.ID != playerID {
		return nil, newError(CodeNotYourTurn, "Not your turn.")
	}
	if r.State.Phase == PhaseAwaitingResponse {
		return nil, newError(CodeAskInProgress, "An ask is already in progress.")
	}
	if err := assumption.Validate(); err != nil {
		return nil, newError(CodeBadInput, err.Error())
	}

	result := &AskResult{TargetID: targetID}
	if targetID != "" {
		if target := r.PlayerByID(targetID); target != nil {
			result.TargetName = target.Name
		}
	}

	r.State.Ask = &Ask{
		FromID:      asker.ID,
		Assumption:  assumption,
		TargetID:    targetID,
		PromptQueue: r.buildPromptQueue(asker.ID, targetID),
		AskedAt:     time.Now(),
	}
	r.State.Phase = PhaseAwaitingResponse

	result.Prompt, result.NoShow = r.dispatchPrompt()
	return result, nil
}

// buildPromptQueue lists the responders owed a chance to answer, in turn
// order starting immediately after the asker. Eliminated players still
// respond to suggestions, so the open queue only requires a live connection.
// A named target is held to the stricter bar (connected and not eliminated);
// an ineligible target yields an empty queue, resolving the ask immediately.
func (r *Room) buildPromptQueue(fromID, targetID string) []string {
	fromIdx := -1
	for i, p := range r.Players {
		if p.ID == fromID {
			fromIdx = i
			break
		}
	}
	if fromIdx == -1 {
		return []string{}
	}

	if targetID != "" {
		if target := r.PlayerByID(targetID); target != nil && target.ID != fromID && target.Eligible() {
			return []string{target.ID}
		}
		return []string{}
	}

	queue := make([]string, 0, len(r.Players)-1)
	for i := 1; i <= len(r.Players); i++ {
		p := r.Players[(fromIdx+i)%len(r.Players)]
		if p.ID != fromID && p.IsConnected {
			queue = append(queue, p.ID)
		}
	}
	return queue
}

// dispatchPrompt pops queue entries until it finds a player still eligible
// to respond. An exhausted queue resolves the ask as "no one could show":
// the ask is cleared and the turn advances, so (nil, true) is returned.
func (r *Room) dispatchPrompt() (*Prompt, bool) {
	for {
		ask := r.State.Ask
		if ask == nil {
			return nil, false
		}

		if len(ask.PromptQueue) == 0 {
			ask.CurrentPromptID = ""
			r.State.Ask = nil
			r.State.Phase = PhaseIdle
			r.State.TurnIndex = r.nextActiveTurnIndex(r.State.TurnIndex)
			return nil, true
		}

		nextID := ask.PromptQueue[0]
		ask.PromptQueue = ask.PromptQueue[1:]
		ask.CurrentPromptID = nextID

		next := r.PlayerByID(nextID)
		from := r.PlayerByID(ask.FromID)
		if next == nil || from == nil || !next.IsConnected {
			// Disconnected after the ask was created.
			continue
		}

		return &Prompt{
			PlayerID:   next.ID,
			FromID:     from.ID,
			FromName:   from.Name,
			Assumption: ask.Assumption,
		}, false
	}
}

// Reveal is a valid show: the card name goes privately to the asker, the
// rest of the room only learns that the responder showed something.
type Reveal struct {
	AskerID       string
	ResponderID   string
	ResponderName string
	CardName      string
}

// ShowOutcome describes a valid show or skip. Exactly one field is set:
// Reveal for a show, Prompt for a skip that moved the queue along, NoShow
// for a skip that drained it.
type ShowOutcome struct {
	Reveal *Reveal
	Prompt *Prompt
	NoShow bool
}

// RespondToAsk processes a show (cardName set) or skip (cardName empty)
// against the in-flight ask. A show must name a card the responder holds
// that matches the assumption; a skip is only valid when the responder's
// hand has no overlap with it. Responses with no ask in flight are ignored.
// Validation is by hand contents; invalid responses consume no queue slot.
func (r *Room) RespondToAsk(playerID, cardName string) (*ShowOutcome, error) {
	if r.Finished {
		return nil, nil
	}
	ask := r.State.Ask
	if ask == nil {
		return nil, nil
	}
	responder := r.PlayerByID(playerID)
	if responder == nil {
		return nil, nil
	}

	matches := game.Matching(r.Hand(responder.ID), ask.Assumption)

	if cardName != "" {
		ok := false
		for _, m := range matches {
			if m == cardName {
				ok = true
				break
			}
		}
		if !ok {
			return nil, newError(CodeShowInvalid, "You can only show a matching card that you actually have.")
		}

		reveal := &Reveal{
			AskerID:       ask.FromID,
			ResponderID:   responder.ID,
			ResponderName: responder.Name,
			CardName:      cardName,
		}
		r.State.Ask = nil
		r.State.Phase = PhaseIdle
		r.State.TurnIndex = r.nextActiveTurnIndex(r.State.TurnIndex)
		return &ShowOutcome{Reveal: reveal}, nil
	}

	if len(matches) > 0 {
		return nil, newError(CodeShowInvalid, "You have a matching card. You must show one of them.")
	}

	prompt, noShow := r.dispatchPrompt()
	return &ShowOutcome{Prompt: prompt, NoShow: noShow}, nil
}

// PendingPrompt rebuilds the prompt owed to the currently prompted player,
// used to re-deliver it after a reconnect.
func (r *Room) PendingPrompt() *Prompt {
	ask := r.State.Ask
	if ask == nil || ask.CurrentPromptID == "" {
		return nil
	}
	from := r.PlayerByID(ask.FromID)
	if from == nil {
		return nil
	}
	return &Prompt{
		PlayerID:   ask.CurrentPromptID,
		FromID:     from.ID,
		FromName:   from.Name,
		Assumption: ask.Assumption,
	}
}

// DisconnectUpdate describes the machine's reaction to a player dropping:
// the prompt window moves past them and the turn skips them if needed.
type DisconnectUpdate struct {
	Prompt       *Prompt
	NoShow       bool
	TurnAdvanced bool
}

// MarkDisconnected flags the player as disconnected and, in a started game,
// advances any prompt or turn that was waiting on them. The player keeps
// their seat so a rejoin with the same session can resume.
func (r *Room) MarkDisconnected(playerID string) *DisconnectUpdate {
	p := r.PlayerByID(playerID)
	if p == nil {
		return nil
	}
	p.IsConnected = false

	update := &DisconnectUpdate{}
	if !r.Started || r.Finished {
		return update
	}

	if ask := r.State.Ask; ask != nil && ask.CurrentPromptID == playerID {
		update.Prompt, update.NoShow = r.dispatchPrompt()
	}

	if current := r.CurrentTurn(); current != nil && current.ID == playerID {
		r.State.TurnIndex = r.nextActiveTurnIndex(r.State.TurnIndex)
		update.TurnAdvanced = true
	}
	return update
}
