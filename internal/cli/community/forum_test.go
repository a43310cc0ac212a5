package community

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daybook/internal/cli/clitest"
	"github.com/julianstephens/daybook/internal/forum"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/perm"
)

func onlyPost(t *testing.T, env *clitest.Env) models.Post {
	t.Helper()
	f := forum.New(env.Ctx.Store, env.Ctx.Policy(), nil)
	require.NoError(t, f.Load(context.Background()))
	require.Len(t, f.Items(), 1)
	return f.Items()[0]
}

func TestForumFlow(t *testing.T) {
	env := clitest.New(t)
	env.SignIn(t, "ada@example.com", "Ada")

	require.NoError(t, (&ForumPostCmd{Title: "Hello", Content: "First *post*"}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Published: Hello")
	post := onlyPost(t, env)

	require.NoError(t, (&ForumLikeCmd{ID: post.ID}).Run(env.Ctx))
	require.NoError(t, (&ForumLikeCmd{ID: post.ID}).Run(env.Ctx))
	assert.Contains(t, env.Output(), `Liked "Hello" (1 likes)`)

	env.SignIn(t, "bob@example.com", "")
	require.NoError(t, (&ForumCommentCmd{ID: post.ID, Text: "Welcome!"}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Commented as Anonymous User")

	require.NoError(t, (&ForumListCmd{}).Run(env.Ctx))
	out := env.Output()
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "by Ada")
	assert.Contains(t, out, "1 likes, 1 comments")

	require.NoError(t, (&ForumShowCmd{ID: post.ID[:8], Width: 80}).Run(env.Ctx))
	out = env.Output()
	assert.Contains(t, out, "(1 likes)")
	assert.Contains(t, out, "1. Anonymous User: Welcome!")

	// Only the administrator removes comments, and only the author or the
	// administrator removes posts.
	err := (&ForumUncommentCmd{ID: post.ID, Comment: "1"}).Run(env.Ctx)
	assert.True(t, errors.Is(err, perm.ErrForbidden))
	err = (&ForumDeleteCmd{ID: post.ID}).Run(env.Ctx)
	assert.True(t, errors.Is(err, perm.ErrForbidden))

	env.SignIn(t, clitest.AdminEmail, "Mod")
	require.NoError(t, (&ForumUncommentCmd{ID: post.ID, Comment: "1"}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "Comment removed")
	assert.Empty(t, onlyPost(t, env).Comments)

	env.SignIn(t, "ada@example.com", "Ada")
	require.NoError(t, (&ForumUnlikeCmd{ID: post.ID}).Run(env.Ctx))
	assert.Contains(t, env.Output(), `Unliked "Hello" (0 likes)`)

	require.NoError(t, (&ForumDeleteCmd{ID: post.ID}).Run(env.Ctx))
	require.NoError(t, (&ForumListCmd{}).Run(env.Ctx))
	assert.Contains(t, env.Output(), "No posts yet")
}

func TestCommentRef(t *testing.T) {
	p := models.Post{Comments: []models.Comment{{ID: "aaaa1111"}, {ID: "bbbb2222"}}}

	id, err := commentRef(p, "2")
	require.NoError(t, err)
	assert.Equal(t, "bbbb2222", id)

	id, err = commentRef(p, "aaaa")
	require.NoError(t, err)
	assert.Equal(t, "aaaa1111", id)

	_, err = commentRef(p, "3")
	assert.Error(t, err)
}
