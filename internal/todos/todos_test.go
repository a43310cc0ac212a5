package todos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage/memory"
	"github.com/julianstephens/daybook/internal/validation"
)

func TestListLifecycle(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 2, 3, 8, 30, 0, 0, time.UTC)
	l := New(memory.New(), "u1", nil, WithClock(func() time.Time { return fixed }))

	id, err := l.Create(ctx, "Buy milk")
	require.NoError(t, err)

	items := l.Items()
	require.Len(t, items, 1)
	assert.False(t, items[0].IsCompleted)
	assert.False(t, items[0].IsImportant)
	assert.True(t, items[0].CreatedAt.Equal(fixed))

	task, err := l.ToggleComplete(ctx, id)
	require.NoError(t, err)
	assert.True(t, task.IsCompleted)

	task, err = l.ToggleImportant(ctx, id)
	require.NoError(t, err)
	assert.True(t, task.IsImportant)
	assert.True(t, task.IsCompleted, "toggling one flag leaves the other")

	task, err = l.Rename(ctx, id, "Buy oat milk")
	require.NoError(t, err)
	assert.Equal(t, "Buy oat milk", task.Name)

	require.NoError(t, l.Remove(ctx, id))
	assert.Empty(t, l.Items())
}

func TestCreateRejectsEmptyName(t *testing.T) {
	l := New(memory.New(), "u1", nil)
	_, err := l.Create(context.Background(), "")
	assert.True(t, errors.Is(err, validation.ErrInvalid))
	assert.Empty(t, l.Items())
}

func TestBreakdown(t *testing.T) {
	got := Breakdown([]models.Task{
		{IsCompleted: true, IsImportant: true},
		{IsCompleted: true},
		{IsImportant: true},
		{},
	})
	assert.Equal(t, Counts{Completed: 2, Incomplete: 2, Important: 2, Total: 4}, got)
	assert.Equal(t, Counts{}, Breakdown(nil))
}
