package session

import (
	"context"
	"strings"

	"cardroom-server/internal/events"
	"cardroom-server/internal/room"

	"github.com/sirupsen/logrus"
)

// JoinChat seats username in a chat room, creating it on first use. Chat
// rooms have no capacity limit and no cards.
func (e *Engine) JoinChat(ctx context.Context, name, username, conn string) ([]events.Event, error) {
	const intent = "join"

	username, err := NormalizeUsername(username)
	if err != nil {
		return e.fail(conn, intent, err)
	}
	if name, err = NormalizeRoomName(name); err != nil {
		return e.fail(conn, intent, err)
	}
	// Outside the section; see CreateRoom.
	if _, seated := e.reg.RoomOf(conn); seated {
		return e.fail(conn, intent, ErrAlreadySeated)
	}

	evs, err := e.reg.WithRoom(ctx, name, func(r *room.Room) (*room.Room, []events.Event, error) {
		if r == nil {
			r = room.New(name, room.KindChat, e.reg.Now())
		}
		if r.Kind != room.KindChat {
			return nil, nil, ErrWrongRoomKind
		}

		if existing := r.PlayerByName(username); existing != nil {
			if e.policy != PolicyEvict {
				return nil, nil, ErrDuplicateName
			}
			existing.ConnID = conn
		} else {
			r.Players = append(r.Players, room.Player{Name: username, ConnID: conn})
		}

		return r, []events.Event{
			events.ToRoom(name, events.Status, username+" joined the room"),
			events.ToRoom(name, events.UserList, r.Names()),
		}, nil
	})
	if err != nil {
		return e.fail(conn, intent, err)
	}

	e.log.WithFields(logrus.Fields{
		"room": name,
		"user": username,
		"conn": conn,
	}).Info("User joined chat")
	return evs, nil
}

// SendMessage relays message to everyone in the sender's chat room under
// the sender's seated name.
func (e *Engine) SendMessage(ctx context.Context, conn, message string) ([]events.Event, error) {
	const intent = "send_message"

	if strings.TrimSpace(message) == "" {
		return e.fail(conn, intent, ErrEmptyMessage)
	}
	name, err := e.seatedRoom(conn)
	if err != nil {
		return e.fail(conn, intent, err)
	}

	var (
		username string
		kind     room.Kind
	)
	err = e.reg.View(ctx, name, func(r *room.Room) {
		if r == nil {
			return
		}
		kind = r.Kind
		username = playerName(r, conn)
	})
	switch {
	case err != nil:
	case username == "":
		err = e.notSeated(conn, name, ErrNotInRoom)
	case kind != room.KindChat:
		err = ErrWrongRoomKind
	}
	if err != nil {
		return e.fail(conn, intent, err)
	}

	return []events.Event{
		events.ToRoom(name, events.NewMessage, events.ChatMessagePayload{
			Username: username,
			Message:  message,
		}),
	}, nil
}
