// Package clitest builds command contexts over an in-memory store.
package clitest

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daybook/internal/auth"
	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/config"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage/memory"
)

const AdminEmail = "admin@example.com"

type Env struct {
	Ctx     *cli.Context
	Session *auth.Session
	out     *bytes.Buffer
}

// New returns a signed-out context whose output is captured.
func New(t testing.TB) *Env {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default(dir)
	cfg.Store = config.MemoryDSN
	cfg.AdminEmail = AdminEmail
	cfg.Timezone = "UTC"

	signer, err := auth.NewSigner(bytes.Repeat([]byte{3}, auth.KeySize), cfg.Server.SessionTTL)
	require.NoError(t, err)
	session := auth.NewSession(signer, auth.FileTokens{Path: filepath.Join(dir, "session")})

	store := memory.New()
	require.NoError(t, store.Init())
	t.Cleanup(func() { _ = store.Close() })

	out := &bytes.Buffer{}
	return &Env{
		Ctx: &cli.Context{
			Store:         store,
			Config:        cfg,
			ConfigDir:     dir,
			Session:       session,
			Out:           out,
			In:            strings.NewReader(""),
			MarkdownStyle: "notty",
		},
		Session: session,
		out:     out,
	}
}

// SignIn switches the session to email.
func (e *Env) SignIn(t testing.TB, email, name string) models.Identity {
	t.Helper()
	id, err := e.Session.SignIn(email, name)
	require.NoError(t, err)
	return id
}

// Output returns and clears everything printed so far.
func (e *Env) Output() string {
	s := e.out.String()
	e.out.Reset()
	return s
}
