package registry

import (
	"slices"
	"sync"
)

// connIndex maps connections to the room they are seated in and back. It is
// process-local: a connection only ever talks to the process holding its
// socket.
type connIndex struct {
	rooms   map[string]string              // conn -> room
	members map[string]map[string]struct{} // room -> conns
	mu      sync.RWMutex
}

func newConnIndex() *connIndex {
	return &connIndex{
		rooms:   make(map[string]string),
		members: make(map[string]map[string]struct{}),
	}
}

func (ix *connIndex) lookup(conn string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	name, ok := ix.rooms[conn]
	return name, ok
}

func (ix *connIndex) list(room string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	conns := make([]string, 0, len(ix.members[room]))
	for c := range ix.members[room] {
		conns = append(conns, c)
	}
	slices.Sort(conns)
	return conns
}

// sync replaces the membership of room with conns.
func (ix *connIndex) sync(room string, conns []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for c := range ix.members[room] {
		if ix.rooms[c] == room {
			delete(ix.rooms, c)
		}
	}
	delete(ix.members, room)

	if len(conns) == 0 {
		return
	}

	set := make(map[string]struct{}, len(conns))
	for _, c := range conns {
		// A connection sits in one room at a time; a newer seat wins.
		if prev, ok := ix.rooms[c]; ok && prev != room {
			delete(ix.members[prev], c)
			if len(ix.members[prev]) == 0 {
				delete(ix.members, prev)
			}
		}
		ix.rooms[c] = room
		set[c] = struct{}{}
	}
	ix.members[room] = set
}

// forget drops a single stale entry.
func (ix *connIndex) forget(conn, room string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.rooms[conn] != room {
		return
	}
	delete(ix.rooms, conn)
	delete(ix.members[room], conn)
	if len(ix.members[room]) == 0 {
		delete(ix.members, room)
	}
}
