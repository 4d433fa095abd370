package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardroom-server/internal/events"
	"cardroom-server/internal/room"

	"github.com/sirupsen/logrus"
)

var (
	ErrRoomExists       = errors.New("ROOM_ALREADY_EXISTS: Room already exists")
	ErrMutationPanicked = errors.New("INTERNAL_ERROR: Room update failed")
)

// Mutation receives the current room (nil when absent) and returns the room
// to commit (nil deletes it) plus the events to deliver once committed. A
// non-nil error discards the whole transition.
type Mutation func(current *room.Room) (*room.Room, []events.Event, error)

// Registry owns every room. All reads and writes go through an exclusive
// section scoped to the room name, so each transition sees exactly the state
// committed by the one before it. Different names never block each other.
type Registry struct {
	store    room.Store
	locker   Locker
	index    *connIndex
	lockWait time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
}

type Option func(*Registry)

// WithLocker replaces the default in-process locker.
func WithLocker(l Locker) Option {
	return func(g *Registry) { g.locker = l }
}

// WithLockWait bounds how long a caller waits to enter a section.
func WithLockWait(d time.Duration) Option {
	return func(g *Registry) { g.lockWait = d }
}

func WithClock(now func() time.Time) Option {
	return func(g *Registry) { g.now = now }
}

func New(store room.Store, log logrus.FieldLogger, opts ...Option) *Registry {
	g := &Registry{
		store:    store,
		locker:   NewLocalLocker(),
		index:    newConnIndex(),
		lockWait: 3 * time.Second,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Registry) Now() time.Time {
	return g.now()
}

// WithRoom runs fn inside the exclusive section for name and commits its
// result.
func (g *Registry) WithRoom(ctx context.Context, name string, fn Mutation) ([]events.Event, error) {
	return g.run(ctx, name, false, fn)
}

// CreateRoom is WithRoom that fails with ErrRoomExists when a room is
// already stored under name by the time the section is entered.
func (g *Registry) CreateRoom(ctx context.Context, name string, fn Mutation) ([]events.Event, error) {
	return g.run(ctx, name, true, fn)
}

// View hands fn a private copy of the committed room (nil when absent)
// without committing anything.
func (g *Registry) View(ctx context.Context, name string, fn func(*room.Room)) error {
	_, err := g.run(ctx, name, false, func(current *room.Room) (*room.Room, []events.Event, error) {
		fn(current)
		return nil, nil, errViewOnly
	})
	if errors.Is(err, errViewOnly) {
		return nil
	}
	return err
}

var errViewOnly = errors.New("view only")

// DeleteIf deletes name when expired reports true for the committed room. The
// check and the delete share one section. It reports whether the room was
// deleted.
func (g *Registry) DeleteIf(ctx context.Context, name string, expired func(*room.Room) bool) (bool, error) {
	deleted := false
	_, err := g.run(ctx, name, false, func(current *room.Room) (*room.Room, []events.Event, error) {
		if current == nil || !expired(current) {
			return nil, nil, errViewOnly
		}
		deleted = true
		return nil, nil, nil
	})
	if errors.Is(err, errViewOnly) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (g *Registry) run(ctx context.Context, name string, create bool, fn Mutation) ([]events.Event, error) {
	lockCtx := ctx
	if g.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, g.lockWait)
		defer cancel()
	}

	unlock, err := g.locker.Lock(lockCtx, name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := g.store.Load(ctx, name)
	if errors.Is(err, room.ErrNotStored) {
		current = nil
	} else if err != nil {
		return nil, err
	}

	if create && current != nil {
		return nil, ErrRoomExists
	}

	next, evs, err := g.apply(name, current, fn)
	if err != nil {
		return nil, err
	}

	if next == nil {
		if current != nil {
			if err := g.store.Delete(ctx, name); err != nil {
				return nil, err
			}
			g.log.WithField("room", name).Info("Room deleted")
		}
		g.index.sync(name, nil)
		return evs, nil
	}

	if next.Name != name {
		return nil, fmt.Errorf("%w: room %q committed under %q", room.ErrInvariant, next.Name, name)
	}
	next.UpdatedAt = g.now()
	if err := next.Validate(); err != nil {
		return nil, err
	}

	if err := g.store.Save(ctx, next); err != nil {
		return nil, err
	}
	g.index.sync(name, next.ConnIDs())

	return evs, nil
}

// apply runs fn and turns a panic into an error so the deferred unlock in
// run always executes with the section's state untouched.
func (g *Registry) apply(name string, current *room.Room, fn Mutation) (next *room.Room, evs []events.Event, err error) {
	defer func() {
		if p := recover(); p != nil {
			g.log.WithField("room", name).Errorf("Room mutation panicked: %v", p)
			next, evs, err = nil, nil, fmt.Errorf("%w: %v", ErrMutationPanicked, p)
		}
	}()
	return fn(current)
}

// RoomOf returns the room conn is seated in, as last committed by this
// process.
func (g *Registry) RoomOf(conn string) (string, bool) {
	return g.index.lookup(conn)
}

// Members lists the connections seated in name, for broadcasting.
func (g *Registry) Members(name string) []string {
	return g.index.list(name)
}

// Forget drops a stale conn -> room entry after a section showed conn is no
// longer seated there.
func (g *Registry) Forget(conn, name string) {
	g.index.forget(conn, name)
}

func (g *Registry) Names(ctx context.Context) ([]string, error) {
	return g.store.Names(ctx)
}
