package session

import (
	"context"
	"errors"
	"strings"

	"cardroom-server/internal/cards"
	"cardroom-server/internal/events"
	"cardroom-server/internal/room"

	"github.com/sirupsen/logrus"
)

// CreateRoom opens a card room, seats username as its first player and
// deals them 13 cards from a fresh shuffled deck. An empty name gets a
// generated four-letter code.
func (e *Engine) CreateRoom(ctx context.Context, name, username, conn string) ([]events.Event, error) {
	const intent = "create_room"

	username, err := NormalizeUsername(username)
	if err != nil {
		return e.fail(conn, intent, err)
	}
	// Checked outside the section. A connection's intents arrive one at a
	// time from its own read loop, so it cannot gain a seat before this
	// intent commits.
	if _, seated := e.reg.RoomOf(conn); seated {
		return e.fail(conn, intent, ErrAlreadySeated)
	}

	generated := strings.TrimSpace(name) == ""
	if !generated {
		if name, err = NormalizeRoomName(name); err != nil {
			return e.fail(conn, intent, err)
		}
	}

	for attempt := 1; ; attempt++ {
		if generated {
			name = GenerateRoomCode(e.src)
		}

		evs, err := e.reg.CreateRoom(ctx, name, e.createMutation(name, username, conn))
		if generated && errors.Is(err, ErrRoomAlreadyExists) && attempt < maxCodeAttempts {
			continue
		}
		if err != nil {
			return e.fail(conn, intent, err)
		}

		e.log.WithFields(logrus.Fields{
			"room": name,
			"user": username,
			"conn": conn,
		}).Info("Room created")
		return evs, nil
	}
}

func (e *Engine) createMutation(name, username, conn string) func(*room.Room) (*room.Room, []events.Event, error) {
	return func(*room.Room) (*room.Room, []events.Event, error) {
		r := room.New(name, room.KindCard, e.reg.Now())

		hand, rest, err := cards.Deal(cards.NewShuffledDeck(e.src), room.HandSize)
		if err != nil {
			return nil, nil, err
		}
		r.Deck = rest
		r.Players = append(r.Players, room.Player{Name: username, ConnID: conn, Hand: hand})

		return r, []events.Event{
			events.ToConn(conn, events.RoomCreated, events.RoomCreatedPayload{
				Room:    name,
				Players: r.Public(conn),
			}),
			events.ToConn(conn, events.Hand, hand),
		}, nil
	}
}

// JoinRoom seats username in an existing card room and deals them 13 cards
// from the room's remainder.
func (e *Engine) JoinRoom(ctx context.Context, name, username, conn string) ([]events.Event, error) {
	const intent = "join_room"

	username, err := NormalizeUsername(username)
	if err != nil {
		return e.fail(conn, intent, err)
	}
	if name, err = NormalizeRoomName(name); err != nil {
		return e.fail(conn, intent, ErrRoomNotFound)
	}
	// Outside the section; see CreateRoom.
	if _, seated := e.reg.RoomOf(conn); seated {
		return e.fail(conn, intent, ErrAlreadySeated)
	}

	evs, err := e.reg.WithRoom(ctx, name, func(r *room.Room) (*room.Room, []events.Event, error) {
		if r == nil {
			return nil, nil, ErrRoomNotFound
		}
		if r.Kind != room.KindCard {
			return nil, nil, ErrWrongRoomKind
		}

		if existing := r.PlayerByName(username); existing != nil && e.policy == PolicyEvict {
			return e.takeOver(r, existing, conn)
		}

		if r.Status != room.StatusWaiting {
			return nil, nil, ErrGameAlreadyStarted
		}
		if r.Full() {
			return nil, nil, ErrRoomFull
		}
		if r.PlayerByName(username) != nil {
			return nil, nil, ErrDuplicateName
		}

		hand, rest, err := cards.Deal(r.Deck, room.HandSize)
		if err != nil {
			return nil, nil, err
		}
		r.Deck = rest
		r.Players = append(r.Players, room.Player{Name: username, ConnID: conn, Hand: hand})

		return r, []events.Event{
			events.ToRoom(name, events.Joined, events.JoinedPayload{
				Players: r.Public(""),
				Status:  r.Status,
			}),
			events.ToConn(conn, events.Hand, hand),
		}, nil
	})
	if err != nil {
		return e.fail(conn, intent, err)
	}

	e.log.WithFields(logrus.Fields{
		"room": name,
		"user": username,
		"conn": conn,
	}).Info("Player joined room")
	return evs, nil
}

// takeOver moves an existing seat to conn. Everything tied to the old
// connection follows it: hand, readiness, the turn and past plays.
func (e *Engine) takeOver(r *room.Room, p *room.Player, conn string) (*room.Room, []events.Event, error) {
	old := p.ConnID
	if old == conn {
		return nil, nil, ErrDuplicateName
	}

	p.ConnID = conn
	if r.CurrentTurn == old {
		r.CurrentTurn = conn
	}
	for i := range r.Played {
		if r.Played[i].ConnID == old {
			r.Played[i].ConnID = conn
		}
	}

	e.log.WithFields(logrus.Fields{
		"room":     r.Name,
		"user":     p.Name,
		"old_conn": old,
		"conn":     conn,
	}).Warn("Seat taken over by new connection")

	evs := []events.Event{
		events.ToRoom(r.Name, events.Joined, events.JoinedPayload{
			Players: r.Public(""),
			Status:  r.Status,
		}),
		events.ToConn(conn, events.Hand, append([]cards.Card(nil), p.Hand...)),
	}
	if r.Status == room.StatusPlaying {
		evs = append(evs, events.ToConn(conn, events.NextTurn, events.TurnPayload{
			CurrentPlayer: playerName(r, r.CurrentTurn),
		}))
	}
	return r, evs, nil
}

// Ready marks conn's player ready. When four seated players are ready in a
// waiting room the game starts with a randomly chosen first player.
func (e *Engine) Ready(ctx context.Context, conn string) ([]events.Event, error) {
	const intent = "ready"

	name, err := e.seatedRoom(conn)
	if err != nil {
		return e.fail(conn, intent, err)
	}

	started := false
	evs, err := e.reg.WithRoom(ctx, name, func(r *room.Room) (*room.Room, []events.Event, error) {
		if r == nil || r.Seat(conn) < 0 {
			return nil, nil, ErrNotInRoom
		}
		if r.Kind != room.KindCard {
			return nil, nil, ErrWrongRoomKind
		}

		r.PlayerByConn(conn).Ready = true

		if r.Status != room.StatusWaiting || !r.AllReady() {
			return r, []events.Event{
				events.ToRoom(name, events.PlayersUpdate, r.Public("")),
			}, nil
		}

		first := r.Players[e.src.IntN(len(r.Players))]
		r.Status = room.StatusPlaying
		r.CurrentTurn = first.ConnID
		r.Round++
		r.Played = r.Played[:0]
		started = true

		return r, []events.Event{
			events.ToRoom(name, events.GameStart, events.TurnPayload{CurrentPlayer: first.Name}),
		}, nil
	})
	if err != nil {
		return e.fail(conn, intent, e.notSeated(conn, name, err))
	}

	if started {
		e.log.WithField("room", name).Info("Game started")
	}
	return evs, nil
}

// PlayCard moves card from the current player's hand to the played pile and
// passes the turn on. The game finishes once every seated hand is empty.
func (e *Engine) PlayCard(ctx context.Context, conn string, card cards.Card) ([]events.Event, error) {
	const intent = "play_card"

	if !card.Valid() {
		return e.fail(conn, intent, ErrInvalidCard)
	}
	name, err := e.seatedRoom(conn)
	if err != nil {
		return e.fail(conn, intent, err)
	}

	finished := false
	evs, err := e.reg.WithRoom(ctx, name, func(r *room.Room) (*room.Room, []events.Event, error) {
		var p *room.Player
		if r != nil {
			p = r.PlayerByConn(conn)
		}
		if p == nil {
			return nil, nil, ErrNotInRoom
		}
		if r.Kind != room.KindCard {
			return nil, nil, ErrWrongRoomKind
		}
		if r.Status != room.StatusPlaying {
			return nil, nil, ErrGameNotInProgress
		}
		if r.CurrentTurn != conn {
			return nil, nil, ErrNotYourTurn
		}

		hand, ok := cards.Remove(p.Hand, card)
		if !ok {
			return nil, nil, ErrCardNotInHand
		}
		p.Hand = hand
		r.Played = append(r.Played, room.Play{ConnID: conn, Card: card})

		evs := []events.Event{
			events.ToRoom(name, events.CardPlayed, events.CardPlayedPayload{
				Player:    p.Name,
				Card:      card,
				Remaining: len(hand),
			}),
		}

		if !advanceTurn(r, conn) {
			finished = true
			return r, append(evs, finish(r)), nil
		}
		return r, append(evs, events.ToRoom(name, events.NextTurn, events.TurnPayload{
			CurrentPlayer: playerName(r, r.CurrentTurn),
		})), nil
	})
	if err != nil {
		return e.fail(conn, intent, e.notSeated(conn, name, err))
	}

	if finished {
		e.log.WithField("room", name).Info("Game finished")
	}
	return evs, nil
}
