package server

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestConnectionManager_UnknownConnection(t *testing.T) {
	log, _ := test.NewNullLogger()
	cm := NewConnectionManager(func(string) []string { return []string{"gone-1", "gone-2"} }, log)

	err := cm.Send(context.Background(), "missing", "pong", struct{}{})
	assert.True(t, errors.Is(err, ErrConnectionNotFound))

	// Members that already closed are skipped, not reported.
	assert.NoError(t, cm.Broadcast(context.Background(), "table", "players_update", nil))
}

func TestConnectionManager_Tracking(t *testing.T) {
	log, _ := test.NewNullLogger()
	cm := NewConnectionManager(func(string) []string { return nil }, log)

	assert.Equal(t, 0, cm.Count())
	assert.False(t, cm.Has("c1"))

	cm.AddConnection("c1", nil)
	cm.mu.RLock()
	_, tracked := cm.connections["c1"]
	cm.mu.RUnlock()
	assert.True(t, tracked)
	assert.Equal(t, 1, cm.Count())

	cm.RemoveConnection("c1")
	assert.Equal(t, 0, cm.Count())
	assert.Nil(t, cm.GetConnection("c1"))
}
