package session

import (
	"errors"
	"fmt"

	"cardroom-server/internal/cards"
	"cardroom-server/internal/events"
	"cardroom-server/internal/registry"
	"cardroom-server/internal/room"

	"github.com/sirupsen/logrus"
)

// DuplicateNamePolicy decides what happens when a second connection joins a
// room under a name that is already seated there.
type DuplicateNamePolicy string

const (
	// PolicyReject fails the join with ErrDuplicateName.
	PolicyReject DuplicateNamePolicy = "reject"
	// PolicyEvict hands the existing seat, hand and turn to the new
	// connection. The old connection is unseated without notice.
	PolicyEvict DuplicateNamePolicy = "evict"
)

func ParseDuplicateNamePolicy(s string) (DuplicateNamePolicy, error) {
	switch p := DuplicateNamePolicy(s); p {
	case PolicyReject, PolicyEvict:
		return p, nil
	case "":
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown duplicate name policy %q", s)
	}
}

// Engine implements the client intents. Every intent runs as one registry
// transition and returns the events to deliver once it has committed.
type Engine struct {
	reg    *registry.Registry
	src    cards.Source
	policy DuplicateNamePolicy
	log    logrus.FieldLogger
}

type Option func(*Engine)

// WithSource sets the randomness used for shuffling, first-player selection
// and room codes. The source must be safe for concurrent use unless the
// engine is driven from a single goroutine.
func WithSource(src cards.Source) Option {
	return func(e *Engine) { e.src = src }
}

func WithDuplicateNamePolicy(p DuplicateNamePolicy) Option {
	return func(e *Engine) { e.policy = p }
}

func New(reg *registry.Registry, log logrus.FieldLogger, opts ...Option) *Engine {
	e := &Engine{
		reg:    reg,
		src:    cards.DefaultSource,
		policy: PolicyReject,
		log:    log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// fail turns err into the single error event for conn. Errors the client
// did not cause are logged and shown as ErrInternal.
func (e *Engine) fail(conn, intent string, err error) ([]events.Event, error) {
	entry := e.log.WithFields(logrus.Fields{
		"conn":   conn,
		"intent": intent,
	}).WithError(err)

	if IsClientError(err) {
		entry.Debug("Intent rejected")
	} else {
		entry.Error("Intent failed")
	}
	return []events.Event{events.ErrorTo(conn, clientError(err))}, err
}

// seatedRoom resolves the room conn is seated in through the connection
// index.
func (e *Engine) seatedRoom(conn string) (string, error) {
	name, ok := e.reg.RoomOf(conn)
	if !ok {
		return "", ErrNotInRoom
	}
	return name, nil
}

// notSeated is returned from inside a transition when the index pointed at
// a room that no longer seats conn. The stale entry is dropped.
func (e *Engine) notSeated(conn, name string, err error) error {
	if errors.Is(err, ErrNotInRoom) {
		e.reg.Forget(conn, name)
	}
	return err
}

// advanceTurn moves the turn from conn to the next seated player who still
// holds cards. It reports false when nobody does.
func advanceTurn(r *room.Room, from string) bool {
	next := from
	for range r.Players {
		next = r.NextSeat(next)
		if p := r.PlayerByConn(next); p != nil && len(p.Hand) > 0 {
			r.CurrentTurn = next
			return true
		}
	}
	return false
}

func finish(r *room.Room) events.Event {
	r.Status = room.StatusFinished
	r.CurrentTurn = ""
	return events.ToRoom(r.Name, events.GameOver, events.GameOverPayload{
		Round:  r.Round,
		Played: len(r.Played),
	})
}

func playerName(r *room.Room, conn string) string {
	if p := r.PlayerByConn(conn); p != nil {
		return p.Name
	}
	return ""
}
