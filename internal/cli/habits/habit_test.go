package habits

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daybook/internal/cli/clitest"
	tracker "github.com/julianstephens/daybook/internal/habits"
)

func TestHabitLifecycle(t *testing.T) {
	env := clitest.New(t)
	who := env.SignIn(t, "ada@example.com", "Ada")

	require.NoError(t, (&HabitAddCmd{Name: "Stretch"}).Run(env.Ctx))
	require.NoError(t, (&HabitAddCmd{Name: "Read"}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Tracking habit: Stretch")

	tr := tracker.New(env.Ctx.Store, who.UID, nil)
	require.NoError(t, tr.Load(context.Background()))
	require.Len(t, tr.Items(), 2)
	var id string
	for _, h := range tr.Items() {
		if h.Name == "Stretch" {
			id = h.ID
		}
	}
	require.NotEmpty(t, id)

	require.NoError(t, (&HabitDoneCmd{ID: id}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Done: Stretch")

	require.NoError(t, (&HabitListCmd{}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "1 of 2 done")

	require.NoError(t, (&HabitDoneCmd{ID: id}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Not done: Stretch")

	require.NoError(t, (&HabitEditCmd{ID: id, Name: "Stretch twice"}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Renamed habit: Stretch twice")

	require.NoError(t, (&HabitDeleteCmd{ID: id}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Deleted habit: Stretch twice")

	require.NoError(t, (&HabitListCmd{}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "0 of 1 done")
}

func TestHabitUnknownID(t *testing.T) {
	env := clitest.New(t)
	env.SignIn(t, "ada@example.com", "")
	assert.Error(t, (&HabitDoneCmd{ID: "nope"}).Run(env.Ctx))
}
