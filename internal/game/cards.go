package game

import "fmt"

// The three fixed card categories. The full deck is every card in all three.
var Suspects = []string{
	"Miss Scarlet",
	"Colonel Mustard",
	"Mrs. White",
	"Mr. Green",
	"Mrs. Peacock",
	"Professor Plum",
}

var Weapons = []string{"Candlestick", "Knife", "Lead Pipe", "Revolver", "Rope", "Wrench"}

var Rooms = []string{
	"Kitchen",
	"Ballroom",
	"Conservatory",
	"Dining Room",
	"Billiard Room",
	"Library",
	"Lounge",
	"Hall",
	"Study",
}

// Deck returns every card across all three categories.
func Deck() []string {
	deck := make([]string, 0, len(Suspects)+len(Weapons)+len(Rooms))
	deck = append(deck, Suspects...)
	deck = append(deck, Weapons...)
	deck = append(deck, Rooms...)
	return deck
}

// Assumption is a proposed {suspect, weapon, room} triple. It doubles as the
// hidden solution and as the payload of asks and accusations.
type Assumption struct {
	Suspect string `json:"suspect"`
	Weapon  string `json:"weapon"`
	Room    string `json:"room"`
}

func (a Assumption) Equal(other Assumption) bool {
	return a.Suspect == other.Suspect && a.Weapon == other.Weapon && a.Room == other.Room
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}

// Validate checks that each card name belongs to its category.
func (a Assumption) Validate() error {
	if !contains(Suspects, a.Suspect) {
		return fmt.Errorf("invalid suspect %q", a.Suspect)
	}
	if !contains(Weapons, a.Weapon) {
		return fmt.Errorf("invalid weapon %q", a.Weapon)
	}
	if !contains(Rooms, a.Room) {
		return fmt.Errorf("invalid room %q", a.Room)
	}
	return nil
}

// Matching returns the assumption cards present in the given hand. An empty
// result means the holder may legally skip.
func Matching(hand []string, a Assumption) []string {
	set := make(map[string]bool, len(hand))
	for _, card := range hand {
		set[card] = true
	}

	matches := make([]string, 0, 3)
	if set[a.Suspect] {
		matches = append(matches, a.Suspect)
	}
	if set[a.Weapon] {
		matches = append(matches, a.Weapon)
	}
	if set[a.Room] {
		matches = append(matches, a.Room)
	}
	return matches
}
