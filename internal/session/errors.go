package session

import (
	"errors"

	"cardroom-server/internal/cards"
	"cardroom-server/internal/registry"
)

// Client errors. The message is sent verbatim as the payload of the error
// event, so it carries a stable code prefix followed by readable text.
var (
	ErrRoomAlreadyExists  = registry.ErrRoomExists
	ErrRoomNotFound       = errors.New("ROOM_NOT_FOUND: Room not found")
	ErrRoomFull           = errors.New("ROOM_FULL: Room is full (4/4 players)")
	ErrDuplicateName      = errors.New("DUPLICATE_NAME: Username already taken in this room")
	ErrInsufficientCards  = cards.ErrInsufficientCards
	ErrNotInRoom          = errors.New("NOT_IN_ROOM: You are not in a room")
	ErrGameNotInProgress  = errors.New("GAME_NOT_IN_PROGRESS: Game is not in progress")
	ErrNotYourTurn        = errors.New("NOT_YOUR_TURN: It is not your turn")
	ErrCardNotInHand      = errors.New("CARD_NOT_IN_HAND: Card is not in your hand")
	ErrGameAlreadyStarted = errors.New("GAME_ALREADY_STARTED: Cannot join a game in progress")
	ErrAlreadySeated      = errors.New("ALREADY_IN_ROOM: Leave your current room first")
	ErrWrongRoomKind      = errors.New("WRONG_ROOM_KIND: That action is not available in this room")
	ErrUsernameInvalid    = errors.New("USERNAME_INVALID: Username must be 1-20 characters")
	ErrRoomNameInvalid    = errors.New("ROOM_NAME_INVALID: Room name must be 1-32 characters")
	ErrEmptyMessage       = errors.New("EMPTY_MESSAGE: Message cannot be empty")
	ErrInvalidCard        = cards.ErrInvalidCard
	ErrBusy               = registry.ErrLockTimeout
)

// ErrInternal is what a client sees when the failure was ours.
var ErrInternal = errors.New("INTERNAL_ERROR: Something went wrong, please try again")

var clientErrors = []error{
	ErrRoomAlreadyExists,
	ErrRoomNotFound,
	ErrRoomFull,
	ErrDuplicateName,
	ErrInsufficientCards,
	ErrNotInRoom,
	ErrGameNotInProgress,
	ErrNotYourTurn,
	ErrCardNotInHand,
	ErrGameAlreadyStarted,
	ErrAlreadySeated,
	ErrWrongRoomKind,
	ErrUsernameInvalid,
	ErrRoomNameInvalid,
	ErrEmptyMessage,
	ErrInvalidCard,
	ErrBusy,
}

// IsClientError reports whether err was caused by the client's input or
// timing rather than by the server.
func IsClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// clientError returns the sentinel to show the client for err.
func clientError(err error) error {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return target
		}
	}
	return ErrInternal
}
