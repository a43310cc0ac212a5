package dashboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daybook/internal/forum"
	"github.com/julianstephens/daybook/internal/habits"
	"github.com/julianstephens/daybook/internal/journal"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/perm"
	"github.com/julianstephens/daybook/internal/profile"
	"github.com/julianstephens/daybook/internal/storage/memory"
	"github.com/julianstephens/daybook/internal/todos"
)

func TestBuild(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	who := models.Identity{UID: "u1", Email: "ada@example.com", DisplayName: "Ada"}

	src := Sources{
		Store:   store,
		Todos:   todos.New(store, who.UID, nil),
		Habits:  habits.New(store, who.UID, nil),
		Journal: journal.New(store, who.UID, nil),
		Forum:   forum.New(store, perm.Policy{}, nil),
	}

	first, err := src.Todos.Create(ctx, "one")
	require.NoError(t, err)
	_, err = src.Todos.Create(ctx, "two")
	require.NoError(t, err)
	_, err = src.Todos.ToggleComplete(ctx, first)
	require.NoError(t, err)
	_, err = src.Habits.Create(ctx, "walk")
	require.NoError(t, err)
	_, err = src.Journal.Write(ctx, "day", "text")
	require.NoError(t, err)
	for i := 0; i < RecentPosts+2; i++ {
		_, err := src.Forum.Publish(ctx, &who, fmt.Sprintf("post %d", i), "body")
		require.NoError(t, err)
	}

	s, err := Build(ctx, src, who)
	require.NoError(t, err)
	assert.Nil(t, s.Profile, "no profile until sign-in writes one")
	assert.Equal(t, todos.Counts{Completed: 1, Incomplete: 1, Total: 2}, s.Todos)
	assert.Equal(t, habits.Counts{Incomplete: 1, Total: 1}, s.Habits)
	assert.Equal(t, 1, s.JournalEntries)
	assert.Len(t, s.RecentPosts, RecentPosts)
	assert.True(t, s.RecentPosts[0].CanDelete)

	_, err = profile.Ensure(ctx, store, who)
	require.NoError(t, err)
	s, err = Build(ctx, src, who)
	require.NoError(t, err)
	require.NotNil(t, s.Profile)
	assert.Equal(t, "Ada", s.Profile.DisplayName)
	assert.WithinDuration(t, time.Now(), s.Profile.LastSeenAt, time.Minute)
}
