package events

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

type recordingDispatcher struct {
	sent    []string
	failFor string
}

func (d *recordingDispatcher) Send(_ context.Context, conn, name string, _ any) error {
	d.sent = append(d.sent, "conn:"+conn+":"+name)
	if name == d.failFor {
		return errors.New("socket closed")
	}
	return nil
}

func (d *recordingDispatcher) Broadcast(_ context.Context, room, name string, _ any) error {
	d.sent = append(d.sent, "room:"+room+":"+name)
	if name == d.failFor {
		return errors.New("socket closed")
	}
	return nil
}

func TestDeliver_KeepsOrderAndTargets(t *testing.T) {
	d := &recordingDispatcher{}
	log, _ := test.NewNullLogger()

	Deliver(context.Background(), d, []Event{
		ToRoom("r1", CardPlayed, nil),
		ToRoom("r1", NextTurn, nil),
		ToConn("c1", Hand, nil),
	}, log)

	assert.Equal(t, []string{
		"room:r1:card_played",
		"room:r1:next_turn",
		"conn:c1:hand",
	}, d.sent)
}

func TestDeliver_ContinuesAfterFailure(t *testing.T) {
	d := &recordingDispatcher{failFor: Joined}
	log, hook := test.NewNullLogger()

	Deliver(context.Background(), d, []Event{
		ToRoom("r1", Joined, nil),
		ToConn("c1", Hand, nil),
	}, log)

	assert.Len(t, d.sent, 2)
	if assert.Len(t, hook.Entries, 1) {
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		assert.Equal(t, Joined, hook.LastEntry().Data["event"])
	}
}

func TestErrorTo(t *testing.T) {
	ev := ErrorTo("c1", errors.New("ROOM_FULL: Room is full"))

	assert.Equal(t, Error, ev.Name)
	assert.Equal(t, "c1", ev.Conn)
	assert.Empty(t, ev.Room)
	assert.Equal(t, "ROOM_FULL: Room is full", ev.Payload)
}
