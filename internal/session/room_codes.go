package session

import (
	"strings"
	"unicode/utf8"

	"cardroom-server/internal/cards"
)

const (
	roomCodeLength  = 4
	maxRoomName     = 32
	maxUsername     = 20
	maxCodeAttempts = 8
)

// GenerateRoomCode returns a random four-letter upper-case code.
func GenerateRoomCode(src cards.Source) string {
	if src == nil {
		src = cards.DefaultSource
	}
	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = 'A' + byte(src.IntN(26))
	}
	return string(code)
}

// NormalizeRoomName trims surrounding space. Room names are otherwise case
// sensitive, so "Lobby" and "lobby" are different rooms.
func NormalizeRoomName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxRoomName {
		return "", ErrRoomNameInvalid
	}
	return name, nil
}

func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsername {
		return "", ErrUsernameInvalid
	}
	return username, nil
}
