package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/keyring"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/models"
)

// Provider reports the signed-in identity and its changes.
type Provider interface {
	Current() *models.Identity
	SignIn(email, displayName string) (models.Identity, error)
	SignOut() error
	// OnChange registers fn to run after every sign-in and sign-out. The
	// returned func removes it.
	OnChange(fn func(*models.Identity)) func()
}

// TokenStore persists the session token between runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// ErrNoToken is returned by TokenStore.Load when nothing is stored.
var ErrNoToken = errors.New("no stored session")

// Session is the local Provider used by the CLI and TUI.
type Session struct {
	signer *Signer
	tokens TokenStore

	mu      sync.RWMutex
	current *models.Identity
	token   string

	lmu       sync.Mutex
	nextID    int
	listeners map[int]func(*models.Identity)
}

var _ Provider = (*Session)(nil)

// NewSession creates a signed-out session. tokens may be nil for a session
// that is not persisted.
func NewSession(signer *Signer, tokens TokenStore) *Session {
	return &Session{
		signer:    signer,
		tokens:    tokens,
		listeners: make(map[int]func(*models.Identity)),
	}
}

// Restore signs in from the persisted token. An invalid or expired token is
// cleared and reported as ErrNotSignedIn.
func (s *Session) Restore() error {
	if s.tokens == nil {
		return ErrNotSignedIn
	}
	token, err := s.tokens.Load()
	if errors.Is(err, ErrNoToken) {
		return ErrNotSignedIn
	}
	if err != nil {
		return err
	}
	id, err := s.signer.Verify(token)
	if err != nil {
		logger.Warn("discarding stored session", "error", err)
		_ = s.tokens.Clear()
		return ErrNotSignedIn
	}
	s.set(&id, token)
	return nil
}

func (s *Session) Current() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

// Token returns the current session token, or "".
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SignIn(email, displayName string) (models.Identity, error) {
	id, err := NewIdentity(email, displayName)
	if err != nil {
		return models.Identity{}, err
	}
	token, err := s.signer.Sign(id)
	if err != nil {
		return models.Identity{}, err
	}
	if s.tokens != nil {
		if err := s.tokens.Save(token); err != nil {
			return models.Identity{}, fmt.Errorf("failed to persist session: %w", err)
		}
	}
	logger.Info("signed in", "uid", id.UID)
	s.set(&id, token)
	return id, nil
}

func (s *Session) SignOut() error {
	if s.tokens != nil {
		if err := s.tokens.Clear(); err != nil && !errors.Is(err, ErrNoToken) {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}
	s.set(nil, "")
	return nil
}

func (s *Session) OnChange(fn func(*models.Identity)) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

func (s *Session) set(id *models.Identity, token string) {
	s.mu.Lock()
	s.current = id
	s.token = token
	s.mu.Unlock()

	s.lmu.Lock()
	fns := make([]func(*models.Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(s.Current())
	}
}

// KeyringTokens keeps the token in the OS keyring.
type KeyringTokens struct{}

func (KeyringTokens) Load() (string, error) {
	token, err := keyring.Get(constants.SessionKeyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoToken
	}
	return token, err
}

func (KeyringTokens) Save(token string) error {
	return keyring.Set(constants.SessionKeyringUser, token)
}

func (KeyringTokens) Clear() error {
	err := keyring.Delete(constants.SessionKeyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNoToken
	}
	return err
}

// FileTokens keeps the token in an owner-only file.
type FileTokens struct {
	Path string
}

func (f FileTokens) Load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f FileTokens) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.Path, []byte(token+"\n"), 0o600)
}

func (f FileTokens) Clear() error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNoToken
	}
	return err
}

// DefaultTokens uses the OS keyring when available and falls back to a file
// in configDir.
func DefaultTokens(configDir string) TokenStore {
	if keyring.IsAvailable() {
		return KeyringTokens{}
	}
	logger.Debug("keyring unavailable, storing session in file")
	return FileTokens{Path: filepath.Join(configDir, "session")}
}
