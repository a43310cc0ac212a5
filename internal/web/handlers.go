package web

import (
	"html/template"
	"net/http"

	"github.com/julianstephens/daybook/internal/auth"
	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/dashboard"
	"github.com/julianstephens/daybook/internal/forum"
	"github.com/julianstephens/daybook/internal/habits"
	"github.com/julianstephens/daybook/internal/journal"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/profile"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/todos"
)

// Feature lists are built per request and scoped to the caller.

func identity(r *http.Request) *models.Identity {
	return auth.FromContext(r.Context())
}

func (s *Server) todos(r *http.Request) *todos.List {
	return todos.New(s.cfg.Store, identity(r).UID, s.cfg.Metrics)
}

func (s *Server) habits(r *http.Request) *habits.Tracker {
	return habits.New(s.cfg.Store, identity(r).UID, s.cfg.Metrics)
}

func (s *Server) journal(r *http.Request) *journal.Journal {
	return journal.New(s.cfg.Store, identity(r).UID, s.cfg.Metrics)
}

func (s *Server) forum() *forum.Service {
	return forum.New(s.cfg.Store, s.cfg.Policy, s.cfg.Metrics)
}

// auth

type loginRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type loginResponse struct {
	Token    string          `json:"token"`
	Identity models.Identity `json:"identity"`
}

func (s *Server) sessionCookie(token string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.DevLogin {
		http.NotFound(w, r)
		return
	}
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := auth.NewIdentity(req.Email, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := profile.Ensure(r.Context(), s.cfg.Store, id); err != nil {
		writeError(w, err)
		return
	}
	token, err := s.cfg.Signer.Sign(id)
	if err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, s.sessionCookie(token, 0))
	writeJSON(w, r, http.StatusOK, loginResponse{Token: token, Identity: id})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	who := identity(r)
	p, err := profile.Get(r.Context(), s.cfg.Store, who.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"identity": who,
		"profile":  p,
		"isAdmin":  s.cfg.Policy.IsAdmin(who.Email),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	who := identity(r)
	summary, err := dashboard.Build(r.Context(), dashboard.Sources{
		Store:   s.cfg.Store,
		Todos:   s.todos(r),
		Habits:  s.habits(r),
		Journal: s.journal(r),
		Forum:   s.forum(),
	}, *who)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// todos

type todoPatch struct {
	Name        *string `json:"name"`
	IsCompleted *bool   `json:"isCompleted"`
	IsImportant *bool   `json:"isImportant"`
}

func (p todoPatch) fields() storage.Fields {
	f := storage.Fields{}
	if p.Name != nil {
		f[constants.FieldName] = *p.Name
	}
	if p.IsCompleted != nil {
		f[constants.FieldIsCompleted] = *p.IsCompleted
	}
	if p.IsImportant != nil {
		f[constants.FieldIsImportant] = *p.IsImportant
	}
	return f
}

func (s *Server) handleTodoList(w http.ResponseWriter, r *http.Request) {
	list := s.todos(r)
	if err := list.Load(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	items := list.Items()
	writeJSON(w, r, http.StatusOK, map[string]any{"items": items, "counts": todos.Breakdown(items)})
}

func (s *Server) handleTodoCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	list := s.todos(r)
	id, err := list.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	task, err := list.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, task)
}

func (s *Server) handleTodoUpdate(w http.ResponseWriter, r *http.Request) {
	var req todoPatch
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	task, err := s.todos(r).Update(r.Context(), r.PathValue("id"), req.fields())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, task)
}

func (s *Server) handleTodoToggle(w http.ResponseWriter, r *http.Request) {
	task, err := s.todos(r).Toggle(r.Context(), r.PathValue("id"), r.PathValue("field"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, task)
}

func (s *Server) handleTodoDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.todos(r).Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// habits

type habitPatch struct {
	Name      *string `json:"name"`
	Completed *bool   `json:"completed"`
}

func (p habitPatch) fields() storage.Fields {
	f := storage.Fields{}
	if p.Name != nil {
		f[constants.FieldName] = *p.Name
	}
	if p.Completed != nil {
		f[constants.FieldCompleted] = *p.Completed
	}
	return f
}

func (s *Server) handleHabitList(w http.ResponseWriter, r *http.Request) {
	t := s.habits(r)
	if err := t.Load(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	items := t.Items()
	writeJSON(w, r, http.StatusOK, map[string]any{"items": items, "counts": habits.Breakdown(items)})
}

func (s *Server) handleHabitCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t := s.habits(r)
	id, err := t.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	h, err := t.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, h)
}

func (s *Server) handleHabitUpdate(w http.ResponseWriter, r *http.Request) {
	var req habitPatch
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h, err := s.habits(r).Update(r.Context(), r.PathValue("id"), req.fields())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h)
}

func (s *Server) handleHabitToggle(w http.ResponseWriter, r *http.Request) {
	h, err := s.habits(r).ToggleDone(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, h)
}

func (s *Server) handleHabitDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.habits(r).Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// journal

type journalView struct {
	models.JournalEntry
	ContentHTML template.HTML `json:"contentHtml"`
}

func presentEntries(entries []models.JournalEntry) []journalView {
	out := make([]journalView, len(entries))
	for i, e := range entries {
		out[i] = journalView{JournalEntry: e, ContentHTML: renderMarkdownHTML(e.Content)}
	}
	return out
}

func (s *Server) handleJournalList(w http.ResponseWriter, r *http.Request) {
	j := s.journal(r)
	if err := j.Load(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	entries, err := journal.FilterByDate(j.Items(), r.URL.Query().Get("date"), s.cfg.Location)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": presentEntries(entries)})
}

func (s *Server) handleJournalWrite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	j := s.journal(r)
	id, err := j.Write(r.Context(), req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	e, err := j.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, presentEntries([]models.JournalEntry{e})[0])
}

func (s *Server) handleJournalGet(w http.ResponseWriter, r *http.Request) {
	e, err := s.journal(r).Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, presentEntries([]models.JournalEntry{e})[0])
}

// forum

type postView struct {
	forum.View
	ContentHTML template.HTML `json:"contentHtml"`
}

func presentPosts(f *forum.Service, posts []models.Post, viewer *models.Identity) []postView {
	out := make([]postView, len(posts))
	for i, p := range posts {
		out[i] = postView{View: f.Present(p, viewer), ContentHTML: renderMarkdownHTML(p.Content)}
	}
	return out
}

func (s *Server) writePost(w http.ResponseWriter, r *http.Request, f *forum.Service, code int, p models.Post) {
	writeJSON(w, r, code, presentPosts(f, []models.Post{p}, identity(r))[0])
}

func (s *Server) handlePostList(w http.ResponseWriter, r *http.Request) {
	f := s.forum()
	if err := f.Load(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": presentPosts(f, f.Items(), identity(r))})
}

func (s *Server) handlePostGet(w http.ResponseWriter, r *http.Request) {
	f := s.forum()
	p, err := f.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writePost(w, r, f, http.StatusOK, p)
}

func (s *Server) handlePostCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	f := s.forum()
	id, err := f.Publish(r.Context(), identity(r), req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := f.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writePost(w, r, f, http.StatusCreated, p)
}

func (s *Server) handlePostDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.forum().DeletePost(r.Context(), identity(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostLike(w http.ResponseWriter, r *http.Request) {
	f := s.forum()
	p, err := f.Like(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writePost(w, r, f, http.StatusOK, p)
}

func (s *Server) handlePostUnlike(w http.ResponseWriter, r *http.Request) {
	f := s.forum()
	p, err := f.Unlike(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.writePost(w, r, f, http.StatusOK, p)
}

func (s *Server) handleCommentAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.forum().AddComment(r.Context(), identity(r), r.PathValue("id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, c)
}

func (s *Server) handleCommentDelete(w http.ResponseWriter, r *http.Request) {
	err := s.forum().DeleteComment(r.Context(), identity(r), r.PathValue("id"), r.PathValue("commentId"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
