package perm

import (
	"testing"

	"github.com/julianstephens/daybook/internal/models"
)

func TestCanDeletePost(t *testing.T) {
	p := Policy{AdminEmail: "Admin@Example.com"}
	post := models.Post{AuthorID: "uid-ada", AuthorEmail: "ada@example.com"}

	tests := []struct {
		name string
		who  *models.Identity
		want bool
	}{
		{"signed out", nil, false},
		{"author by uid", &models.Identity{UID: "uid-ada"}, true},
		{"author by email", &models.Identity{UID: "other", Email: "ADA@example.com"}, true},
		{"admin", &models.Identity{UID: "x", Email: "admin@example.com"}, true},
		{"stranger", &models.Identity{UID: "x", Email: "bob@example.com"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.CanDeletePost(tt.who, post); got != tt.want {
				t.Errorf("CanDeletePost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanDeletePostIgnoresEmptyAuthorFields(t *testing.T) {
	p := Policy{}
	anon := &models.Identity{}
	if p.CanDeletePost(anon, models.Post{}) {
		t.Error("blank identity matched a post without author fields")
	}
}

func TestCanDeleteComment(t *testing.T) {
	p := Policy{AdminEmail: "admin@example.com"}
	if !p.CanDeleteComment(&models.Identity{Email: "admin@example.com"}) {
		t.Error("admin should delete comments")
	}
	if p.CanDeleteComment(&models.Identity{Email: "ada@example.com"}) {
		t.Error("non-admin deleted a comment")
	}
	if p.CanDeleteComment(nil) {
		t.Error("signed-out caller deleted a comment")
	}
}

func TestNoAdminConfigured(t *testing.T) {
	p := Policy{}
	if p.IsAdmin("") {
		t.Error("empty admin e-mail must not match an empty identity")
	}
}
