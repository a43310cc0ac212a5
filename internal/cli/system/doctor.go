package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/julianstephens/daybook/internal/auth"
	"github.com/julianstephens/daybook/internal/backup"
	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/keyring"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/storage/backend"
	"github.com/julianstephens/daybook/internal/utils"
)

type DoctorCmd struct{}

// check is a single diagnostic. Warnings never fail the run.
type check struct {
	name     string
	run      func(ctx *cli.Context) error
	needsDB  bool
	warnOnly bool
}

var checks = []check{
	{name: "Store reachable", run: checkStoreReachable},
	{name: "Schema version", run: checkSchemaVersion, needsDB: true},
	{name: "Migrations complete", run: checkMigrationsComplete, needsDB: true},
	{name: "Backups present", run: checkBackupsPresent, warnOnly: true},
	{name: "OS keyring", run: checkKeyring, warnOnly: true},
	{name: "Clock/timezone", run: checkClockTimezone},
	{name: "Signing key", run: checkSigningKey},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	hasError := false
	dbReachable := true
	for i, c := range checks {
		if c.needsDB && !dbReachable {
			ctx.Printf("⊘ %s: SKIPPED (store not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			ctx.Printf("✓ %s: OK\n", c.name)
		case c.warnOnly:
			ctx.Printf("⚠ %s: WARNING\n", c.name)
			ctx.Printf("   %v\n", err)
		default:
			ctx.Printf("❌ %s: FAIL\n", c.name)
			ctx.Printf("   Error: %v\n", err)
			hasError = true
			if i == 0 {
				dbReachable = false
			}
		}
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	ctx.Println("All diagnostics passed!")
	return nil
}

func checkStoreReachable(ctx *cli.Context) error {
	if ctx.Store == nil {
		return errors.New("no store configured")
	}
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := ctx.Store.List(c, storage.Collection(constants.CollectionUsers).WithLimit(1)); err != nil {
		return fmt.Errorf("failed to query store: %w", err)
	}
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	m, ok := ctx.Store.(backend.Migrator)
	if !ok {
		return nil
	}
	status, err := m.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if status.Current > status.Latest {
		return fmt.Errorf("schema version %d is newer than supported version %d; please upgrade daybook",
			status.Current, status.Latest)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context) error {
	m, ok := ctx.Store.(backend.Migrator)
	if !ok {
		return nil
	}
	status, err := m.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	if n := len(status.Pending); n > 0 {
		return fmt.Errorf("%d pending migration(s); run 'daybook migrate'", n)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	if !ctx.IsSQLite() {
		return nil
	}
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found in %s; run 'daybook backup'", mgr.GetBackupDir())
	}
	return nil
}

func checkKeyring(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		return errors.New("OS keyring is not available; sessions are stored in a file instead")
	}
	return nil
}

func checkClockTimezone(ctx *cli.Context) error {
	tz := ""
	if ctx.Config != nil {
		tz = ctx.Config.Timezone
	}
	loc, err := utils.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	now := time.Now()
	if now.Year() < 2020 {
		return fmt.Errorf("system clock looks wrong: %s", now.Format(time.RFC3339))
	}
	if _, err := time.Parse(constants.DateFormat, utils.FormatDate(now, loc)); err != nil {
		return fmt.Errorf("failed to format today's date: %w", err)
	}
	return nil
}

func checkSigningKey(ctx *cli.Context) error {
	if ctx.Config == nil || ctx.Config.Server.SecretKeyPath == "" {
		return errors.New("server.secret_key_path is not configured")
	}
	path := ctx.Config.Server.SecretKeyPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// Created by the first login or serve.
		return nil
	}
	if _, err := auth.LoadOrCreateKey(path); err != nil {
		return err
	}
	return nil
}
