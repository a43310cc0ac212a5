package postlist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/julianstephens/daybook/internal/forum"
	"github.com/julianstephens/daybook/internal/models"
)

func TestItemText(t *testing.T) {
	v := forum.View{
		Post: models.Post{
			ID:        "p1",
			Title:     "Hello",
			Author:    "Ada",
			CreatedAt: time.Now().Add(-2 * time.Hour),
		},
		LikeCount:     1200,
		LikedByViewer: true,
		AuthorIsAdmin: true,
	}
	item := Item{View: v}
	assert.Equal(t, "♥ Hello", item.Title())
	assert.Equal(t, "Ada (admin) · 2 hours ago · 1,200 likes · 0 comments", item.Description())
}

func TestKeys(t *testing.T) {
	m := New([]forum.View{{Post: models.Post{ID: "p1", Title: "Hello"}}}, 60, 20)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, OpenPostMsg{ID: "p1"}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")})
	assert.Equal(t, LikePostMsg{ID: "p1"}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.Equal(t, NewPostMsg{}, cmd())
}

func TestEmptyView(t *testing.T) {
	assert.Contains(t, New(nil, 60, 20).View(), "No posts yet")
}
