package habits

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage/memory"
	"github.com/julianstephens/daybook/internal/validation"
)

func TestTrackerLifecycle(t *testing.T) {
	ctx := context.Background()
	tr := New(memory.New(), "u1", nil)

	id, err := tr.Create(ctx, "Stretch")
	require.NoError(t, err)

	h, err := tr.ToggleDone(ctx, id)
	require.NoError(t, err)
	assert.True(t, h.Completed)

	h, err = tr.ToggleDone(ctx, id)
	require.NoError(t, err)
	assert.False(t, h.Completed)

	require.NoError(t, tr.Remove(ctx, id))
	require.NoError(t, tr.Load(ctx))
	assert.Empty(t, tr.Items())
}

func TestRenameRejectsEmptyName(t *testing.T) {
	ctx := context.Background()
	tr := New(memory.New(), "u1", nil)
	id, err := tr.Create(ctx, "Read")
	require.NoError(t, err)

	_, err = tr.Rename(ctx, id, "  ")
	assert.True(t, errors.Is(err, validation.ErrInvalid))

	got, err := tr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Read", got.Name)
}

func TestBreakdown(t *testing.T) {
	got := Breakdown([]models.Habit{{Completed: true}, {}, {}})
	assert.Equal(t, Counts{Completed: 1, Incomplete: 2, Total: 3}, got)
}
