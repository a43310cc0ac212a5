// Package forum implements the shared community board on the "posts"
// collection. Every write is checked against the caller's identity here, so
// callers only use the perm predicates to decide which controls to show.
package forum

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/daybook/internal/auth"
	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/entitylist"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/metrics"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/perm"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/validation"
)

type Service struct {
	ctl    *entitylist.Controller[models.Post]
	policy perm.Policy
	now    func() time.Time
}

type Option func(*Service)

// WithClock sets the clock used for comment timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store storage.Provider, policy perm.Policy, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.ctl = entitylist.New(store, entitylist.Config[models.Post]{
		Collection: constants.CollectionPosts,
		Required:   []string{constants.FieldTitle, constants.FieldContent},
		Defaults: func() storage.Fields {
			return storage.Fields{
				constants.FieldLikedBy:   []string{},
				constants.FieldComments:  []models.Comment{},
				constants.FieldCreatedAt: storage.ServerTimestamp,
			}
		},
		ID:      func(p models.Post) string { return p.ID },
		Metrics: m,
	})
	return s
}

func (s *Service) Policy() perm.Policy { return s.policy }

func (s *Service) Load(ctx context.Context) error { return s.ctl.Load(ctx) }

func (s *Service) Items() []models.Post { return s.ctl.Items() }

func (s *Service) Get(ctx context.Context, id string) (models.Post, error) { return s.ctl.Get(ctx, id) }

func (s *Service) Subscribe() (<-chan []models.Post, func()) { return s.ctl.Subscribe() }

func (s *Service) Watch(ctx context.Context) error { return s.ctl.Watch(ctx) }

func (s *Service) Query() storage.Query { return s.ctl.Query() }

// Publish creates a post attributed to who.
func (s *Service) Publish(ctx context.Context, who *models.Identity, title, content string) (string, error) {
	if who == nil {
		return "", auth.ErrNotSignedIn
	}
	return s.ctl.Add(ctx, storage.Fields{
		constants.FieldTitle:       title,
		constants.FieldContent:     content,
		constants.FieldAuthor:      who.AuthorName(),
		constants.FieldAuthorEmail: who.Email,
		constants.FieldAuthorID:    who.UID,
	})
}

// Like adds who to the post's likers. Liking twice is a no-op.
func (s *Service) Like(ctx context.Context, who *models.Identity, postID string) (models.Post, error) {
	return s.setLike(ctx, who, postID, true)
}

// Unlike removes who from the post's likers. Unliking twice is a no-op.
func (s *Service) Unlike(ctx context.Context, who *models.Identity, postID string) (models.Post, error) {
	return s.setLike(ctx, who, postID, false)
}

// ToggleLike likes the post unless who already does, then unlikes it.
func (s *Service) ToggleLike(ctx context.Context, who *models.Identity, postID string) (models.Post, error) {
	if who == nil {
		return models.Post{}, auth.ErrNotSignedIn
	}
	return s.ctl.Mutate(ctx, postID, func(doc storage.Document) (storage.Fields, error) {
		likers := doc.Fields.Strings(constants.FieldLikedBy)
		return likePatch(likers, who.Key(), !containsKey(likers, who.Key())), nil
	})
}

func (s *Service) setLike(ctx context.Context, who *models.Identity, postID string, like bool) (models.Post, error) {
	if who == nil {
		return models.Post{}, auth.ErrNotSignedIn
	}
	return s.ctl.Mutate(ctx, postID, func(doc storage.Document) (storage.Fields, error) {
		return likePatch(doc.Fields.Strings(constants.FieldLikedBy), who.Key(), like), nil
	})
}

// likePatch returns nil when likers already reflect the wanted state.
func likePatch(likers []string, key string, like bool) storage.Fields {
	has := containsKey(likers, key)
	switch {
	case like && !has:
		likers = append(likers, key)
	case !like && has:
		likers = slices.DeleteFunc(likers, func(k string) bool { return strings.EqualFold(k, key) })
	default:
		return nil
	}
	if likers == nil {
		likers = []string{}
	}
	return storage.Fields{constants.FieldLikedBy: likers}
}

func containsKey(likers []string, key string) bool {
	return slices.ContainsFunc(likers, func(k string) bool { return strings.EqualFold(k, key) })
}

// AddComment appends a comment by who to the post's thread.
func (s *Service) AddComment(ctx context.Context, who *models.Identity, postID, content string) (models.Comment, error) {
	if who == nil {
		return models.Comment{}, auth.ErrNotSignedIn
	}
	v := validation.New()
	v.Required(constants.FieldContent, content)
	if err := v.Err(); err != nil {
		return models.Comment{}, err
	}

	c := models.Comment{
		ID:          uuid.NewString(),
		Author:      who.AuthorName(),
		AuthorEmail: who.Email,
		Content:     content,
		CreatedAt:   s.now().UTC(),
	}
	_, err := s.ctl.Mutate(ctx, postID, func(doc storage.Document) (storage.Fields, error) {
		post, err := decodePost(doc)
		if err != nil {
			return nil, err
		}
		return storage.Fields{constants.FieldComments: append(post.Comments, c)}, nil
	})
	if err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

// DeleteComment removes a comment by id. Only the administrator may do this.
func (s *Service) DeleteComment(ctx context.Context, who *models.Identity, postID, commentID string) error {
	if who == nil {
		return auth.ErrNotSignedIn
	}
	if !s.policy.CanDeleteComment(who) {
		logger.Warn("comment deletion refused", "uid", who.UID, "post", postID)
		return fmt.Errorf("delete comment: %w", perm.ErrForbidden)
	}
	_, err := s.ctl.Mutate(ctx, postID, func(doc storage.Document) (storage.Fields, error) {
		post, err := decodePost(doc)
		if err != nil {
			return nil, err
		}
		_, idx, ok := post.FindComment(commentID)
		if !ok {
			return nil, fmt.Errorf("comment %s: %w", commentID, storage.ErrNotFound)
		}
		return storage.Fields{constants.FieldComments: slices.Delete(post.Comments, idx, idx+1)}, nil
	})
	return err
}

// DeletePost removes a post. Its author and the administrator may do this.
func (s *Service) DeletePost(ctx context.Context, who *models.Identity, postID string) error {
	if who == nil {
		return auth.ErrNotSignedIn
	}
	post, err := s.ctl.Get(ctx, postID)
	if err != nil {
		return err
	}
	if !s.policy.CanDeletePost(who, post) {
		logger.Warn("post deletion refused", "uid", who.UID, "post", postID)
		return fmt.Errorf("delete post: %w", perm.ErrForbidden)
	}
	return s.ctl.Remove(ctx, postID)
}

func decodePost(doc storage.Document) (models.Post, error) {
	var p models.Post
	if err := doc.Decode(&p); err != nil {
		return models.Post{}, err
	}
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	}
	return p, nil
}

// View is a post prepared for display to one viewer.
type View struct {
	models.Post
	LikeCount     int           `json:"likeCount"`
	LikedByViewer bool          `json:"likedByViewer"`
	AuthorIsAdmin bool          `json:"authorIsAdmin"`
	CanDelete     bool          `json:"canDelete"`
	Comments      []CommentView `json:"comments"`
}

type CommentView struct {
	models.Comment
	AuthorIsAdmin bool `json:"authorIsAdmin"`
	CanDelete     bool `json:"canDelete"`
}

// Present derives the display state of post for viewer, who may be nil.
func (s *Service) Present(post models.Post, viewer *models.Identity) View {
	v := View{
		Post:          post,
		LikeCount:     post.LikeCount(),
		AuthorIsAdmin: s.policy.IsAdmin(post.AuthorEmail),
		CanDelete:     s.policy.CanDeletePost(viewer, post),
		Comments:      make([]CommentView, len(post.Comments)),
	}
	if viewer != nil {
		v.LikedByViewer = post.IsLikedBy(viewer.Key())
	}
	canDeleteComments := s.policy.CanDeleteComment(viewer)
	for i, c := range post.Comments {
		v.Comments[i] = CommentView{
			Comment:       c,
			AuthorIsAdmin: s.policy.IsAdmin(c.AuthorEmail),
			CanDelete:     canDeleteComments,
		}
	}
	return v
}
