package auth

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/daybook/internal/models"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(bytes.Repeat([]byte{7}, KeySize), time.Hour)
	require.NoError(t, err)
	return s
}

func TestNewIdentity(t *testing.T) {
	a, err := NewIdentity("Ada@Example.com", " Ada ")
	require.NoError(t, err)
	b, err := NewIdentity("ada@example.com", "")
	require.NoError(t, err)

	assert.Equal(t, a.UID, b.UID, "uid ignores case")
	assert.Equal(t, "ada@example.com", a.Email)
	assert.Equal(t, "Ada", a.DisplayName)

	c, err := NewIdentity("bob@example.com", "")
	require.NoError(t, err)
	assert.NotEqual(t, a.UID, c.UID)

	for _, bad := range []string{"", "not-an-email", "Ada <ada@example.com>"} {
		_, err := NewIdentity(bad, "")
		assert.True(t, errors.Is(err, ErrInvalidEmail), bad)
	}
}

func TestSignVerify(t *testing.T) {
	s := testSigner(t)
	id, err := NewIdentity("ada@example.com", "Ada")
	require.NoError(t, err)

	token, err := s.Sign(id)
	require.NoError(t, err)

	got, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := testSigner(t)
	token, err := s.Sign(models.Identity{UID: "u1", Email: "ada@example.com"})
	require.NoError(t, err)

	other, err := NewSigner(bytes.Repeat([]byte{9}, KeySize), time.Hour)
	require.NoError(t, err)
	forged, err := other.Sign(models.Identity{UID: "admin", Email: "admin@example.com"})
	require.NoError(t, err)

	body, _, _ := strings.Cut(forged, ".")
	_, sig, _ := strings.Cut(token, ".")

	for name, tok := range map[string]string{
		"empty":        "",
		"no dot":       "abc",
		"wrong key":    forged,
		"swapped body": body + "." + sig,
	} {
		_, err := s.Verify(tok)
		assert.True(t, errors.Is(err, ErrInvalidToken), name)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := testSigner(t)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	token, err := s.Sign(models.Identity{UID: "u1"})
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = s.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestNewSignerKeySize(t *testing.T) {
	_, err := NewSigner([]byte("short"), time.Hour)
	assert.Error(t, err)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "session.key")

	first, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, first, KeySize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(path, []byte("zz"), 0o600))
	_, err = LoadOrCreateKey(path)
	assert.Error(t, err)
}

func TestSessionSignInOutNotifies(t *testing.T) {
	tokens := FileTokens{Path: filepath.Join(t.TempDir(), "session")}
	s := NewSession(testSigner(t), tokens)
	assert.Nil(t, s.Current())

	var mu sync.Mutex
	var seen []*models.Identity
	unsubscribe := s.OnChange(func(id *models.Identity) {
		mu.Lock()
		seen = append(seen, id)
		mu.Unlock()
	})

	id, err := s.SignIn("ada@example.com", "Ada")
	require.NoError(t, err)
	require.NotNil(t, s.Current())
	assert.Equal(t, id.UID, s.Current().UID)
	assert.NotEmpty(t, s.Token())

	require.NoError(t, s.SignOut())
	assert.Nil(t, s.Current())

	unsubscribe()
	_, err = s.SignIn("bob@example.com", "")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, "ada@example.com", seen[0].Email)
	assert.Nil(t, seen[1])
}

func TestSessionRestore(t *testing.T) {
	dir := t.TempDir()
	tokens := FileTokens{Path: filepath.Join(dir, "session")}
	signer := testSigner(t)

	first := NewSession(signer, tokens)
	assert.True(t, errors.Is(first.Restore(), ErrNotSignedIn))
	_, err := first.SignIn("ada@example.com", "Ada")
	require.NoError(t, err)

	second := NewSession(signer, tokens)
	require.NoError(t, second.Restore())
	require.NotNil(t, second.Current())
	assert.Equal(t, "Ada", second.Current().DisplayName)

	require.NoError(t, os.WriteFile(tokens.Path, []byte("garbage"), 0o600))
	third := NewSession(signer, tokens)
	assert.True(t, errors.Is(third.Restore(), ErrNotSignedIn))
	_, err = tokens.Load()
	assert.True(t, errors.Is(err, ErrNoToken), "bad token is cleared")
}

func TestKeyringTokens(t *testing.T) {
	gokeyring.MockInit()
	var k KeyringTokens

	_ = k.Clear()
	_, err := k.Load()
	assert.True(t, errors.Is(err, ErrNoToken))

	require.NoError(t, k.Save("tok"))
	got, err := k.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	require.NoError(t, k.Clear())
	assert.True(t, errors.Is(k.Clear(), ErrNoToken))
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	ctx = WithIdentity(ctx, models.Identity{UID: "u1"})
	require.NotNil(t, FromContext(ctx))
	assert.Equal(t, "u1", FromContext(ctx).UID)
}
