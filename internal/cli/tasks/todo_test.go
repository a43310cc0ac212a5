package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daybook/internal/cli/clitest"
	"github.com/julianstephens/daybook/internal/todos"
)

func TestTodoLifecycle(t *testing.T) {
	env := clitest.New(t)
	who := env.SignIn(t, "ada@example.com", "Ada")

	require.NoError(t, (&TodoAddCmd{Name: "Water plants"}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Added to-do: Water plants")

	list := todos.New(env.Ctx.Store, who.UID, nil)
	require.NoError(t, list.Load(context.Background()))
	require.Len(t, list.Items(), 1)
	id := list.Items()[0].ID

	require.NoError(t, (&TodoDoneCmd{ID: id[:6]}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Water plants: done")

	require.NoError(t, (&TodoStarCmd{ID: id}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Starred: Water plants")

	require.NoError(t, (&TodoEditCmd{ID: id, Name: "Water ferns"}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Renamed to-do: Water ferns")

	require.NoError(t, (&TodoListCmd{}).Run(env.Ctx))
	out := env.Output()
	assert.Contains(t, out, "[x] *")
	assert.Contains(t, out, "Water ferns")
	assert.Contains(t, out, "1 done, 0 open, 1 important")

	require.NoError(t, (&TodoDeleteCmd{ID: id}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Deleted to-do: Water ferns")

	require.NoError(t, (&TodoListCmd{}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "No to-dos yet")
}

func TestTodoRejectsBlankName(t *testing.T) {
	env := clitest.New(t)
	env.SignIn(t, "ada@example.com", "")
	assert.Error(t, (&TodoAddCmd{Name: "   "}).Run(env.Ctx))
}

func TestTodosArePrivate(t *testing.T) {
	env := clitest.New(t)
	env.SignIn(t, "ada@example.com", "")
	require.NoError(t, (&TodoAddCmd{Name: "Secret"}).Run(env.Ctx))
	env.Output()

	env.SignIn(t, "bob@example.com", "")
	require.NoError(t, (&TodoListCmd{}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "No to-dos yet")
}
