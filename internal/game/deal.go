package game

import "math/rand"

// Deal is the outcome of shuffling and dealing: one hidden solution card per
// category, and the remaining cards split across all players.
type Deal struct {
	Solution Assumption
	Hands    map[string][]string
}

func shuffled(list []string) []string {
	out := make([]string, len(list))
	copy(out, list)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// DealCards draws one random card per category as the solution, then
// shuffles the remaining cards of all categories together and deals them
// round-robin to the given players. Hand sizes differ by at most one.
func DealCards(playerIDs []string) Deal {
	suspects := shuffled(Suspects)
	weapons := shuffled(Weapons)
	rooms := shuffled(Rooms)

	solution := Assumption{
		Suspect: suspects[len(suspects)-1],
		Weapon:  weapons[len(weapons)-1],
		Room:    rooms[len(rooms)-1],
	}

	remaining := make([]string, 0, len(suspects)+len(weapons)+len(rooms)-3)
	remaining = append(remaining, suspects[:len(suspects)-1]...)
	remaining = append(remaining, weapons[:len(weapons)-1]...)
	remaining = append(remaining, rooms[:len(rooms)-1]...)
	rand.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})

	hands := make(map[string][]string, len(playerIDs))
	for _, id := range playerIDs {
		hands[id] = []string{}
	}
	for i, card := range remaining {
		id := playerIDs[i%len(playerIDs)]
		hands[id] = append(hands[id], card)
	}

	return Deal{Solution: solution, Hands: hands}
}
