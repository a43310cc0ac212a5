package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/daybook/internal/auth"
	"github.com/julianstephens/daybook/internal/backup"
	"github.com/julianstephens/daybook/internal/config"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/metrics"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/perm"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/storage/backend"
)

type Context struct {
	Store     storage.Provider
	Config    *config.Config
	ConfigDir string
	Session   auth.Provider
	Metrics   *metrics.Metrics

	// Out and In default to stdout and stdin.
	Out io.Writer
	In  io.Reader
	// MarkdownStyle is a glamour standard style; empty picks dark or light
	// from the terminal background.
	MarkdownStyle string

	inOnce sync.Once
	reader *bufio.Reader
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.out(), format, args...)
}

func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.out(), args...)
}

// Identity returns the signed-in user or an error telling them to sign in.
func (c *Context) Identity() (*models.Identity, error) {
	if c.Session != nil {
		if id := c.Session.Current(); id != nil {
			return id, nil
		}
	}
	return nil, fmt.Errorf("%w: run 'daybook auth login --email you@example.com'", auth.ErrNotSignedIn)
}

func (c *Context) Location() *time.Location {
	if c.Config == nil {
		return time.Local
	}
	loc, err := c.Config.Location()
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Context) Policy() perm.Policy {
	if c.Config == nil {
		return perm.Policy{}
	}
	return perm.Policy{AdminEmail: c.Config.AdminEmail}
}

// Confirm asks a yes/no question on In; anything but y or yes is a no.
func (c *Context) Confirm(prompt string) (bool, error) {
	c.inOnce.Do(func() {
		in := c.In
		if in == nil {
			in = os.Stdin
		}
		c.reader = bufio.NewReader(in)
	})
	c.Printf("%s [y/N]: ", prompt)
	response, err := c.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// IsSQLite reports whether the configured store is a local SQLite file.
func (c *Context) IsSQLite() bool {
	return c.Config != nil && backend.Detect(c.Config.Store) == backend.KindSQLite
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup() {
	if !c.IsSQLite() {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.CreateBackup(); err != nil {
		// Log warning but don't interrupt user workflow
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// RenderMarkdown renders md for the terminal, falling back to the raw text.
func (c *Context) RenderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	style := c.MarkdownStyle
	if style == "" {
		style = "light"
		if lipgloss.HasDarkBackground() {
			style = "dark"
		}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// ShortID is the prefix of id shown in lists.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ResolveID matches ref against ids exactly or as a unique prefix.
func ResolveID(ids []string, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty id", storage.ErrNotFound)
	}
	var match string
	for _, id := range ids {
		if id == ref {
			return id, nil
		}
		if strings.HasPrefix(id, ref) {
			if match != "" {
				return "", fmt.Errorf("id %q is ambiguous", ref)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: no item with id %q", storage.ErrNotFound, ref)
	}
	return match, nil
}

// IDs collects the ids of items.
func IDs[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it)
	}
	return out
}
