package session

import (
	"context"
	"errors"

	"cardroom-server/internal/events"
	"cardroom-server/internal/room"

	"github.com/sirupsen/logrus"
)

var errGone = errors.New("connection not seated")

// Disconnect unseats conn from whatever room it sits in. A connection that
// is not seated anywhere is a silent no-op.
func (e *Engine) Disconnect(ctx context.Context, conn string) ([]events.Event, error) {
	evs, err := e.unseat(ctx, conn)
	if errors.Is(err, ErrNotInRoom) {
		return nil, nil
	}
	if err != nil {
		e.log.WithField("conn", conn).WithError(err).Error("Failed to remove disconnected player")
		return nil, err
	}
	return evs, nil
}

// Leave is the explicit form of Disconnect: the connection stays open and
// is told when it was not seated.
func (e *Engine) Leave(ctx context.Context, conn string) ([]events.Event, error) {
	evs, err := e.unseat(ctx, conn)
	if err != nil {
		return e.fail(conn, "leave_room", err)
	}
	return evs, nil
}

func (e *Engine) unseat(ctx context.Context, conn string) ([]events.Event, error) {
	name, err := e.seatedRoom(conn)
	if err != nil {
		return nil, err
	}

	var left room.Player
	evs, err := e.reg.WithRoom(ctx, name, func(r *room.Room) (*room.Room, []events.Event, error) {
		if r == nil {
			return nil, nil, errGone
		}
		p, seat, ok := r.RemovePlayer(conn)
		if !ok {
			return nil, nil, errGone
		}
		left = p

		if len(r.Players) == 0 {
			return nil, nil, nil
		}
		if r.Kind == room.KindChat {
			return r, []events.Event{
				events.ToRoom(name, events.UserList, r.Names()),
			}, nil
		}
		return r, afterDeparture(r, conn, seat), nil
	})
	if errors.Is(err, errGone) {
		e.reg.Forget(conn, name)
		return nil, ErrNotInRoom
	}
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"room": name,
		"user": left.Name,
		"conn": conn,
	}).Info("Player left room")
	return evs, nil
}

// afterDeparture repairs the turn once conn has left seat in a card room.
// The vacated seat drops out of the rotation.
func afterDeparture(r *room.Room, conn string, seat int) []events.Event {
	evs := []events.Event{
		events.ToRoom(r.Name, events.PlayersUpdate, r.Public("")),
	}
	if r.Status != room.StatusPlaying {
		return evs
	}

	if r.CurrentTurn == conn {
		// The player now sitting at seat is next, so advance from the one
		// before it.
		n := len(r.Players)
		if !advanceTurn(r, r.Players[(seat-1+n)%n].ConnID) {
			return append(evs, finish(r))
		}
		return append(evs, events.ToRoom(r.Name, events.NextTurn, events.TurnPayload{
			CurrentPlayer: playerName(r, r.CurrentTurn),
		}))
	}

	if r.HandsEmpty() {
		return append(evs, finish(r))
	}
	return evs
}

// Prune unseats every player in name whose connection is not alive. Rooms
// persisted by a previous process hold connections that can never return.
// It reports how many players were removed.
func (e *Engine) Prune(ctx context.Context, name string, alive func(conn string) bool) ([]events.Event, int, error) {
	removed := 0
	evs, err := e.reg.WithRoom(ctx, name, func(r *room.Room) (*room.Room, []events.Event, error) {
		removed = 0
		if r == nil {
			return nil, nil, nil
		}

		var evs []events.Event
		for _, conn := range r.ConnIDs() {
			if alive(conn) {
				continue
			}
			_, seat, _ := r.RemovePlayer(conn)
			removed++
			if len(r.Players) > 0 && r.Kind == room.KindCard {
				// Keep only turn changes; one players_update follows.
				evs = append(evs, afterDeparture(r, conn, seat)[1:]...)
			}
		}

		switch {
		case removed == 0:
			return r, nil, nil
		case len(r.Players) == 0:
			return nil, nil, nil
		case r.Kind == room.KindChat:
			return r, []events.Event{events.ToRoom(name, events.UserList, r.Names())}, nil
		}
		update := events.ToRoom(name, events.PlayersUpdate, r.Public(""))
		return r, append([]events.Event{update}, evs...), nil
	})
	if err != nil {
		return nil, 0, err
	}

	if removed > 0 {
		e.log.WithFields(logrus.Fields{
			"room":    name,
			"removed": removed,
		}).Info("Pruned stale players")
	}
	return evs, removed, nil
}
