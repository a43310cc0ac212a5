// Package web serves the daybook JSON API and its live snapshot streams.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/julianstephens/daybook/internal/auth"
	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/metrics"
	"github.com/julianstephens/daybook/internal/perm"
	"github.com/julianstephens/daybook/internal/storage"
)

type Config struct {
	Addr    string
	Store   storage.Provider
	Signer  *auth.Signer
	Policy  perm.Policy
	Metrics *metrics.Metrics
	// Location decides calendar dates for the journal date filter.
	Location *time.Location
	// DevLogin enables POST /auth/login with a bare e-mail address.
	DevLogin bool
}

type Server struct {
	cfg Config
}

func NewServer(cfg Config) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		cfg.Addr = constants.DefaultServerAddr
	}
	if cfg.Store == nil {
		return nil, errors.New("web: store is nil")
	}
	if cfg.Signer == nil {
		return nil, errors.New("web: signer is nil")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Server{cfg: cfg}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.cfg.Metrics.Handler())
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)

	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.requireIdentity(h))
	}
	api("GET /api/me", s.handleMe)
	api("GET /api/dashboard", s.handleDashboard)

	api("GET /api/todos", s.handleTodoList)
	api("POST /api/todos", s.handleTodoCreate)
	api("PATCH /api/todos/{id}", s.handleTodoUpdate)
	api("DELETE /api/todos/{id}", s.handleTodoDelete)
	api("POST /api/todos/{id}/toggle/{field}", s.handleTodoToggle)
	api("GET /api/todos/events", s.handleTodoEvents)

	api("GET /api/habits", s.handleHabitList)
	api("POST /api/habits", s.handleHabitCreate)
	api("PATCH /api/habits/{id}", s.handleHabitUpdate)
	api("DELETE /api/habits/{id}", s.handleHabitDelete)
	api("POST /api/habits/{id}/toggle", s.handleHabitToggle)
	api("GET /api/habits/events", s.handleHabitEvents)

	api("GET /api/journal", s.handleJournalList)
	api("POST /api/journal", s.handleJournalWrite)
	api("GET /api/journal/{id}", s.handleJournalGet)
	api("GET /api/journal/events", s.handleJournalEvents)

	api("GET /api/posts", s.handlePostList)
	api("POST /api/posts", s.handlePostCreate)
	api("GET /api/posts/{id}", s.handlePostGet)
	api("DELETE /api/posts/{id}", s.handlePostDelete)
	api("POST /api/posts/{id}/like", s.handlePostLike)
	api("DELETE /api/posts/{id}/like", s.handlePostUnlike)
	api("POST /api/posts/{id}/comments", s.handleCommentAdd)
	api("DELETE /api/posts/{id}/comments/{commentId}", s.handleCommentDelete)
	api("GET /api/posts/events", s.handlePostEvents)

	return s.instrument(mux)
}

// ListenAndServe serves until ctx is cancelled, then drains open requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("web server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "version": constants.Version})
}

// requireIdentity resolves the session from the cookie or a bearer token and
// rejects the request with 401 when there is none.
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if c, err := r.Cookie(constants.SessionCookieName); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			writeError(w, auth.ErrNotSignedIn)
			return
		}
		id, err := s.cfg.Signer.Verify(token)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// instrument counts requests by route pattern and logs each one at debug level.
func (s *Server) instrument(next *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		_, route := next.Handler(r)
		if route == "" {
			route = "unmatched"
		}
		next.ServeHTTP(rec, r)
		s.cfg.Metrics.ObserveHTTP(r.Method, route, rec.code)
		logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.code, "duration", time.Since(start))
	})
}
