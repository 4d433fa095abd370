package room_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cardroom-server/internal/cards"
	"cardroom-server/internal/room"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRoom(name string) *room.Room {
	r := room.New(name, room.KindCard, time.Now().UTC().Truncate(time.Millisecond))
	hand, rest, _ := cards.Deal(cards.NewDeck(), room.HandSize)
	r.Players = append(r.Players, room.Player{Name: "Alice", ConnID: "conn-1", Hand: hand})
	r.Deck = rest
	return r
}

// exerciseStore runs the contract every Store implementation must satisfy.
func exerciseStore(t *testing.T, s room.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	assert.True(t, errors.Is(err, room.ErrNotStored))

	r := sampleRoom("r1")
	require.NoError(t, s.Save(ctx, r))

	loaded, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, r.Names(), loaded.Names())
	assert.Equal(t, r.Players[0].Hand, loaded.Players[0].Hand)
	assert.Equal(t, r.Deck, loaded.Deck)
	assert.Equal(t, room.StatusWaiting, loaded.Status)

	// Loads are independent copies.
	loaded.Players[0].Name = "Mallory"
	again, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Players[0].Name)

	r.Status = room.StatusFinished
	require.NoError(t, s.Save(ctx, r))
	again, err = s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, room.StatusFinished, again.Status)

	require.NoError(t, s.Save(ctx, sampleRoom("r2")))
	names, err := s.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, names)

	require.NoError(t, s.Delete(ctx, "r1"))
	_, err = s.Load(ctx, "r1")
	assert.True(t, errors.Is(err, room.ErrNotStored))

	// Deleting an absent room is not an error.
	assert.NoError(t, s.Delete(ctx, "r1"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, room.NewMemoryStore())
}

func TestMemoryStore_FinishedBefore(t *testing.T) {
	s := room.NewMemoryStore()
	ctx := context.Background()
	cutoff := time.Now().Add(-24 * time.Hour)

	old := sampleRoom("old")
	old.Status = room.StatusFinished
	old.UpdatedAt = cutoff.Add(-time.Hour)
	require.NoError(t, s.Save(ctx, old))

	fresh := sampleRoom("fresh")
	fresh.Status = room.StatusFinished
	fresh.UpdatedAt = time.Now()
	require.NoError(t, s.Save(ctx, fresh))

	waiting := sampleRoom("waiting")
	waiting.UpdatedAt = cutoff.Add(-time.Hour)
	require.NoError(t, s.Save(ctx, waiting))

	names, err := s.FinishedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, names)
}
