package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage/memory"
)

func TestGetMissingIsNil(t *testing.T) {
	p, err := Get(context.Background(), memory.New(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestEnsureCreatesThenRefreshes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	store := memory.New(memory.WithClock(func() time.Time { return now }))
	id := models.Identity{UID: "u1", Email: "ada@example.com", DisplayName: "Ada"}

	p, err := Ensure(ctx, store, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.True(t, p.CreatedAt.Equal(now))

	now = now.Add(48 * time.Hour)
	id.DisplayName = "Ada L."
	p, err = Ensure(ctx, store, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", p.DisplayName)
	assert.True(t, p.CreatedAt.Equal(time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)), "createdAt is kept")
	assert.True(t, p.LastSeenAt.Equal(now))
}
