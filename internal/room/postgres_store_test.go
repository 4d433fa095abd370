package room_test

import (
	"context"
	"testing"
	"time"

	"cardroom-server/internal/database"
	"cardroom-server/internal/room"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// setupTestDB starts a throwaway Postgres, applies migrations and returns a
// pool. Skipped in -short mode or when no container runtime is reachable.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("cardroom"),
		postgres.WithUsername("cardroom"),
		postgres.WithPassword("cardroom"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := database.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool))
	return pool
}

func TestPostgresStore(t *testing.T) {
	pool := setupTestDB(t)
	exerciseStore(t, room.NewPostgresStore(pool))
}

func TestPostgresStore_FinishedBefore(t *testing.T) {
	pool := setupTestDB(t)
	s := room.NewPostgresStore(pool)
	ctx := context.Background()

	old := sampleRoom("old")
	old.Status = room.StatusFinished
	old.UpdatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.Save(ctx, old))

	fresh := sampleRoom("fresh")
	fresh.Status = room.StatusFinished
	require.NoError(t, s.Save(ctx, fresh))

	waiting := sampleRoom("waiting")
	waiting.UpdatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.Save(ctx, waiting))

	names, err := s.FinishedBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, names)

	names, err = s.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh", "old", "waiting"}, names, "listing deletes nothing")
}

func TestDatabaseHealth(t *testing.T) {
	pool := setupTestDB(t)

	stats := database.Health(context.Background(), pool)

	assert.Equal(t, "up", stats["status"])
	assert.NotEmpty(t, stats["max_conns"])
}
