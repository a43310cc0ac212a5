package models

import (
	"strings"
	"time"

	"github.com/julianstephens/daybook/internal/constants"
)

// Identity is the signed-in user as reported by the auth provider.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// AuthorName is the name shown on posts and comments.
func (i Identity) AuthorName() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	return constants.AnonymousAuthor
}

// Key identifies the user in like sets.
func (i Identity) Key() string {
	return strings.ToLower(strings.TrimSpace(i.Email))
}

// Profile is the "users/{uid}" document read by the dashboard.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}
