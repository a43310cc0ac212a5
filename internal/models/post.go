package models

import (
	"slices"
	"strings"
	"time"
)

// Comment is one entry of a post's comment thread.
type Comment struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	AuthorEmail string    `json:"authorEmail,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Post is a forum post. The like count is not stored; see LikeCount.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	AuthorEmail string    `json:"authorEmail,omitempty"`
	AuthorID    string    `json:"authorId,omitempty"`
	LikedBy     []string  `json:"likedBy"`
	Comments    []Comment `json:"comments"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LikeCount is derived from the set of likers.
func (p Post) LikeCount() int {
	return len(p.LikedBy)
}

// IsLikedBy reports whether key (an identity e-mail) has liked the post.
func (p Post) IsLikedBy(key string) bool {
	return slices.ContainsFunc(p.LikedBy, func(k string) bool {
		return strings.EqualFold(k, key)
	})
}

// FindComment returns the comment with the given id and its position.
func (p Post) FindComment(id string) (Comment, int, bool) {
	for i, c := range p.Comments {
		if c.ID == id {
			return c, i, true
		}
	}
	return Comment{}, -1, false
}
