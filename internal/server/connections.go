package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

var ErrConnectionNotFound = errors.New("connection not found")

const writeTimeout = 5 * time.Second

// ConnectionManager owns the open sockets of this process and delivers
// events to them. Room membership comes from the registry's index.
type ConnectionManager struct {
	connections map[string]*websocket.Conn // connectionID → socket
	members     func(room string) []string
	log         logrus.FieldLogger
	mu          sync.RWMutex
}

func NewConnectionManager(members func(room string) []string, log logrus.FieldLogger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		members:     members,
		log:         log,
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
}

// GetConnection returns websocket for connectionID
func (cm *ConnectionManager) GetConnection(connectionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[connectionID]
}

func (cm *ConnectionManager) Has(connectionID string) bool {
	return cm.GetConnection(connectionID) != nil
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// Send writes one event to a single connection.
func (cm *ConnectionManager) Send(ctx context.Context, connectionID, name string, payload any) error {
	conn := cm.GetConnection(connectionID)
	if conn == nil {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
	}

	data, err := json.Marshal(ServerMessage{Type: name, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Broadcast writes one event to every connection seated in room on this
// process. A failed write does not stop the rest of the room.
func (cm *ConnectionManager) Broadcast(ctx context.Context, room, name string, payload any) error {
	var errs []error
	for _, id := range cm.members(room) {
		err := cm.Send(ctx, id, name, payload)
		if err == nil || errors.Is(err, ErrConnectionNotFound) {
			// A socket that closed mid-broadcast is unseated by its own
			// read loop.
			continue
		}
		cm.log.WithFields(logrus.Fields{
			"room":  room,
			"conn":  id,
			"event": name,
		}).WithError(err).Debug("Broadcast write failed")
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CloseAll closes every socket, used during shutdown.
func (cm *ConnectionManager) CloseAll(reason string) {
	cm.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		c.Close(websocket.StatusGoingAway, reason)
	}
}
