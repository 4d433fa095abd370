package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Fanout delivers events when several processes share rooms through the
// Redis lock. Sockets held here are written directly; every room event is
// also published so the other processes can write to theirs.
type Fanout struct {
	local   *ConnectionManager
	rdb     *redis.Client
	channel string
	origin  string
	sub     *redis.PubSub
	log     logrus.FieldLogger
}

// fanoutMessage carries one event together with the connections it targets,
// as seen by the process that committed it.
type fanoutMessage struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room,omitempty"`
	Conns   []string        `json:"conns"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

func NewFanout(rdb *redis.Client, prefix string, local *ConnectionManager, log logrus.FieldLogger) *Fanout {
	return &Fanout{
		local:   local,
		rdb:     rdb,
		channel: prefix + "events",
		origin:  uuid.NewString(),
		log:     log,
	}
}

// Send writes to a local socket, or hands the event to whichever process
// holds conn.
func (f *Fanout) Send(ctx context.Context, conn, name string, payload any) error {
	err := f.local.Send(ctx, conn, name, payload)
	if !errors.Is(err, ErrConnectionNotFound) {
		return err
	}
	return f.publish(ctx, "", []string{conn}, name, payload)
}

// Broadcast writes to the room's local sockets and publishes the event with
// the full member list for everyone else.
func (f *Fanout) Broadcast(ctx context.Context, room, name string, payload any) error {
	members := f.local.members(room)
	err := f.local.Broadcast(ctx, room, name, payload)
	if len(members) == 0 {
		return err
	}
	return errors.Join(err, f.publish(ctx, room, members, name, payload))
}

func (f *Fanout) publish(ctx context.Context, room string, conns []string, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	msg, err := json.Marshal(fanoutMessage{
		Origin:  f.origin,
		Room:    room,
		Conns:   conns,
		Name:    name,
		Payload: data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := f.rdb.Publish(ctx, f.channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", name, err)
	}
	return nil
}

// Subscribe joins the event channel. Events published before it returns
// are not seen by this process.
func (f *Fanout) Subscribe(ctx context.Context) error {
	sub := f.rdb.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}
	f.sub = sub
	f.log.WithField("channel", f.channel).Info("Subscribed to room events")
	return nil
}

// Run delivers events published by other processes until ctx is done.
// Subscribe must have succeeded first.
func (f *Fanout) Run(ctx context.Context) error {
	defer f.sub.Close()
	ch := f.sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.receive(ctx, msg.Payload)
		}
	}
}

func (f *Fanout) receive(ctx context.Context, data string) {
	var msg fanoutMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		f.log.WithError(err).Warn("Dropping malformed room event")
		return
	}
	if msg.Origin == f.origin {
		return
	}

	for _, conn := range msg.Conns {
		err := f.local.Send(ctx, conn, msg.Name, msg.Payload)
		if err == nil || errors.Is(err, ErrConnectionNotFound) {
			continue
		}
		f.log.WithFields(logrus.Fields{
			"room":  msg.Room,
			"conn":  conn,
			"event": msg.Name,
		}).WithError(err).Debug("Fanout write failed")
	}
}
