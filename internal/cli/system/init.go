package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/constants"
)

type InitCmd struct {
	Force bool `help:"Delete an existing SQLite database before initialization."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if !ctx.IsSQLite() {
			return errors.New("--force is only supported for the SQLite store")
		}
		dbPath := ctx.Store.GetConfigPath()
		if _, err := os.Stat(dbPath); err == nil {
			// Close first to release the file lock
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			ctx.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	ctx.Printf("Initialized daybook storage at: %s\n", ctx.Store.GetConfigPath())

	if ctx.ConfigDir != "" && ctx.Config != nil {
		path := filepath.Join(ctx.ConfigDir, constants.ConfigFileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := ctx.Config.SaveToFile(path); err != nil {
				return err
			}
			ctx.Printf("Wrote default configuration to: %s\n", path)
		}
	}
	return nil
}
