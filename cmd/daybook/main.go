package main

import (
	"errors"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/daybook/internal/auth"
	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/cli/account"
	"github.com/julianstephens/daybook/internal/cli/backups"
	"github.com/julianstephens/daybook/internal/cli/community"
	"github.com/julianstephens/daybook/internal/cli/entries"
	"github.com/julianstephens/daybook/internal/cli/habits"
	"github.com/julianstephens/daybook/internal/cli/system"
	"github.com/julianstephens/daybook/internal/cli/tasks"
	"github.com/julianstephens/daybook/internal/config"
	"github.com/julianstephens/daybook/internal/constants"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/metrics"
	"github.com/julianstephens/daybook/internal/perm"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/storage/backend"
	"github.com/julianstephens/daybook/internal/utils"
	"github.com/julianstephens/daybook/internal/validation"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Extra config file applied over ~/.config/daybook/config.yaml." type:"path"`
	Store   string `help:"Store DSN: SQLite path, postgres:// URL (no password), nats:// URL or memory://." env:"DAYBOOK_STORE"`
	Debug   bool   `help:"Log debug output to stderr." env:"DAYBOOK_DEBUG"`

	Init      system.InitCmd     `cmd:"" help:"Initialize daybook storage."`
	Migrate   system.MigrateCmd  `cmd:"" help:"Run database migrations."`
	Doctor    system.DoctorCmd   `cmd:"" help:"Run health checks and diagnostics."`
	Tui       system.TuiCmd      `cmd:"" help:"Launch the interactive TUI." default:"1"`
	Serve     system.ServeCmd    `cmd:"" help:"Serve the web app."`
	Dashboard cli.DashboardCmd   `cmd:"" help:"Show today's summary."`
	Auth      account.AuthCmd    `cmd:"" help:"Sign in and out."`
	Todo      tasks.TodoCmd      `cmd:"" help:"Manage to-dos."`
	Habit     habits.HabitCmd    `cmd:"" help:"Manage daily habits."`
	Journal   entries.JournalCmd `cmd:"" help:"Write and read journal entries."`
	Forum     community.ForumCmd `cmd:"" help:"Read and post to the community forum."`
	Backup    backups.BackupCmd  `cmd:"" help:"Manage database backups."`
	Keyring   system.KeyringCmd  `cmd:"" help:"Manage the PostgreSQL connection string in the OS keyring."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Dashboard, to-dos, habits, journal and a small community forum"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	configDir := utils.ExpandPath(constants.DefaultConfigDir)
	cfg, err := config.Load(configDir, CLI.Config)
	if err != nil {
		apperrors.Fatal(err)
	}
	if CLI.Store != "" {
		cfg.Store = utils.ExpandPath(CLI.Store)
	}
	if err := cfg.Validate(); err != nil {
		apperrors.Fatal(err)
	}

	if err := logger.Init(logger.Config{Debug: CLI.Debug, ConfigDir: configDir}); err != nil {
		apperrors.Fatal(err)
	}

	store, err := backend.New(cfg)
	if err != nil {
		apperrors.Fatal(err)
	}
	defer store.Close()

	switch command := topLevel(ctx.Command()); command {
	case "init", "keyring":
		// Init creates the store itself; keyring never touches it.
	case "doctor":
		if err := load(cfg, store); err != nil {
			logger.Warn("store did not load", "error", err)
		}
	default:
		if err := load(cfg, store); err != nil {
			if errors.Is(err, storage.ErrNotInitialized) {
				err = errors.New("store is not initialized; run 'daybook init' first")
			}
			store.Close()
			apperrors.Fatal(err)
		}
	}

	session, err := newSession(cfg, configDir)
	if err != nil {
		store.Close()
		apperrors.Fatal(err)
	}

	appCtx := &cli.Context{
		Store:     store,
		Config:    cfg,
		ConfigDir: configDir,
		Session:   session,
		Metrics:   metrics.New(),
		Out:       os.Stdout,
		In:        os.Stdin,
	}

	if err := ctx.Run(appCtx); err != nil {
		store.Close()
		apperrors.Fatal(withExitCode(err))
	}
}

// load opens an existing store. The memory store has nothing to load and
// starts empty.
func load(cfg *config.Config, store storage.Provider) error {
	if backend.Detect(cfg.Store) == backend.KindMemory {
		return store.Init()
	}
	return store.Load()
}

// newSession restores the signed-in identity, if any.
func newSession(cfg *config.Config, configDir string) (*auth.Session, error) {
	key, err := auth.LoadOrCreateKey(cfg.Server.SecretKeyPath)
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewSigner(key, cfg.Server.SessionTTL)
	if err != nil {
		return nil, err
	}
	session := auth.NewSession(signer, auth.DefaultTokens(configDir))
	if err := session.Restore(); err != nil && !errors.Is(err, auth.ErrNotSignedIn) {
		logger.Warn("failed to restore session", "error", err)
	}
	return session, nil
}

// withExitCode maps domain errors onto the documented exit codes.
func withExitCode(err error) error {
	switch {
	case errors.Is(err, perm.ErrForbidden):
		return apperrors.WithCode(apperrors.ExitForbidden, err)
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.WithCode(apperrors.ExitNotFound, err)
	case errors.Is(err, validation.ErrInvalid), errors.Is(err, auth.ErrInvalidEmail):
		return apperrors.WithCode(apperrors.ExitUsage, err)
	default:
		return err
	}
}

// topLevel returns the first word of a kong command path such as
// "keyring set <connection-string>".
func topLevel(command string) string {
	if fields := strings.Fields(command); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
