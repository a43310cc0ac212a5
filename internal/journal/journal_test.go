package journal

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

func TestWriteUsesStoreClock(t *testing.T) {
	ctx := context.Background()
	stamp := time.Date(2024, 6, 1, 22, 15, 0, 0, time.UTC)
	j := New(memory.New(memory.WithClock(func() time.Time { return stamp })), "u1", nil)

	id, err := j.Write(ctx, "Evening", "Quiet day.")
	require.NoError(t, err)

	e, err := j.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Evening", e.Title)
	assert.True(t, e.CreatedAt.Equal(stamp))
	require.Len(t, j.Items(), 1)
}

func TestWriteRequiresTitleAndContent(t *testing.T) {
	j := New(memory.New(), "u1", nil)
	_, err := j.Write(context.Background(), "title", "")
	require.Error(t, err)
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "content", verr.Problems[0].Field)
}

func TestFilterByDate(t *testing.T) {
	ny := time.FixedZone("EST", -5*60*60)

	entries := []models.JournalEntry{
		{ID: "a", CreatedAt: time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)},  // Mar 9 in New York
		{ID: "b", CreatedAt: time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)}, // Mar 10
		{ID: "c", CreatedAt: time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)},
	}

	tests := []struct {
		name string
		date string
		loc  *time.Location
		want []string
	}{
		{"empty date returns all", "", ny, []string{"a", "b", "c"}},
		{"local date boundary", "2024-03-10", ny, []string{"b"}},
		{"previous local day", "2024-03-09", ny, []string{"a"}},
		{"utc", "2024-03-10", time.UTC, []string{"a", "b"}},
		{"no matches", "2023-01-01", ny, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterByDate(entries, tt.date, tt.loc)
			require.NoError(t, err)
			ids := []string{}
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFilterByDateRejectsBadInput(t *testing.T) {
	_, err := FilterByDate(nil, "10/03/2024", time.UTC)
	assert.True(t, errors.Is(err, validation.ErrInvalid))
}
