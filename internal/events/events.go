package events

import (
	"context"

	"cardroom-server/internal/cards"
	"cardroom-server/internal/room"

	"github.com/sirupsen/logrus"
)

const (
	RoomCreated   = "room_created"
	Joined        = "joined"
	Hand          = "hand"
	PlayersUpdate = "players_update"
	GameStart     = "game_start"
	CardPlayed    = "card_played"
	NextTurn      = "next_turn"
	GameOver      = "game_over"
	UserList      = "user_list"
	Status        = "status"
	NewMessage    = "new_message"
	Error         = "error"
)

// Event is one outbound message. Exactly one of Room and Conn is set: Room
// means every connection seated in that room, Conn a single connection.
type Event struct {
	Name    string
	Room    string
	Conn    string
	Payload any
}

func ToRoom(room, name string, payload any) Event {
	return Event{Name: name, Room: room, Payload: payload}
}

func ToConn(conn, name string, payload any) Event {
	return Event{Name: name, Conn: conn, Payload: payload}
}

func ErrorTo(conn string, err error) Event {
	return ToConn(conn, Error, err.Error())
}

// Payloads. Events whose payload is a bare list or string (hand,
// players_update, user_list, status, error) use the plain Go type.

type RoomCreatedPayload struct {
	Room    string              `json:"room"`
	Players []room.PlayerPublic `json:"players"`
}

type JoinedPayload struct {
	Players []room.PlayerPublic `json:"players"`
	Status  room.Status         `json:"status"`
}

type TurnPayload struct {
	CurrentPlayer string `json:"current_player"`
}

type CardPlayedPayload struct {
	Player    string     `json:"player"`
	Card      cards.Card `json:"card"`
	Remaining int        `json:"remaining"`
}

type GameOverPayload struct {
	Round  int `json:"round"`
	Played int `json:"played"`
}

type ChatMessagePayload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Dispatcher delivers events. It is implemented by the transport.
type Dispatcher interface {
	Send(ctx context.Context, conn, name string, payload any) error
	Broadcast(ctx context.Context, room, name string, payload any) error
}

// Deliver sends evs in order. A failed delivery is logged and does not stop
// the rest of the batch.
func Deliver(ctx context.Context, d Dispatcher, evs []Event, log logrus.FieldLogger) {
	for _, ev := range evs {
		var err error
		if ev.Conn != "" {
			err = d.Send(ctx, ev.Conn, ev.Name, ev.Payload)
		} else {
			err = d.Broadcast(ctx, ev.Room, ev.Name, ev.Payload)
		}
		if err != nil {
			log.WithFields(logrus.Fields{
				"event": ev.Name,
				"room":  ev.Room,
				"conn":  ev.Conn,
			}).WithError(err).Warn("Failed to deliver event")
		}
	}
}
