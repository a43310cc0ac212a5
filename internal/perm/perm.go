// Package perm decides who may delete forum content.
package perm

import (
	"errors"
	"strings"

	"github.com/julianstephens/daybook/internal/models"
)

// ErrForbidden is returned when the caller may not perform an action.
var ErrForbidden = errors.New("not allowed")

// Policy holds the single administrator identity.
type Policy struct {
	AdminEmail string
}

// IsAdmin reports whether email belongs to the administrator.
func (p Policy) IsAdmin(email string) bool {
	admin := strings.TrimSpace(p.AdminEmail)
	return admin != "" && strings.EqualFold(admin, strings.TrimSpace(email))
}

// CanDeletePost allows the post's author, matched by uid or e-mail, and the administrator.
func (p Policy) CanDeletePost(who *models.Identity, post models.Post) bool {
	if who == nil {
		return false
	}
	if p.IsAdmin(who.Email) {
		return true
	}
	if post.AuthorID != "" && post.AuthorID == who.UID {
		return true
	}
	return post.AuthorEmail != "" && strings.EqualFold(post.AuthorEmail, who.Email)
}

// CanDeleteComment allows only the administrator.
func (p Policy) CanDeleteComment(who *models.Identity) bool {
	return who != nil && p.IsAdmin(who.Email)
}
