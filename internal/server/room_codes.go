package server

import (
	"math/rand"
	"strings"
)

// Room codes avoid visually ambiguous characters (I, O, 0, 1).
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const roomCodeLength = 6

func GenerateRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(code)
}

// NormalizeRoomCode uppercases and strips everything outside A-Z0-9, so
// pasted codes with spaces or stray punctuation still resolve.
func NormalizeRoomCode(code string) string {
	code = strings.ToUpper(code)
	var b strings.Builder
	b.Grow(len(code))
	for _, ch := range code {
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
