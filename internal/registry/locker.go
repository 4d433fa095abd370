package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrLockTimeout = errors.New("BUSY: Room is busy, please try again")

// Locker grants exclusive sections keyed by room name. unlock must be safe
// to call exactly once on every exit path.
type Locker interface {
	Lock(ctx context.Context, name string) (unlock func(), err error)
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// LocalLocker serialises sections within one process. Each name gets a
// one-slot semaphore that lives only while someone holds or waits for it.
type LocalLocker struct {
	entries map[string]*lockEntry
	mu      sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		entries: make(map[string]*lockEntry),
	}
}

func (l *LocalLocker) Lock(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[name]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[name] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(name, e)
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, name)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(name, e)
		})
	}, nil
}

func (l *LocalLocker) release(name string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, name)
	}
}

// held reports how many names currently have holders or waiters.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
