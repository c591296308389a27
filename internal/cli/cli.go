// Package cli provides the command-line interface for Satchel.
package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/app"
	"github.com/satchel-app/satchel/internal/config"
	"github.com/satchel-app/satchel/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "satchel",
	Short: "Offline-first sync client for school management",
	Long: `Offline-first sync client for school management.

Satchel keeps a durable local copy of school data (sections, subjects,
grades, attendance and more), queues every change made while offline,
and reconciles with the server whenever a connection is available.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

// Execute runs the CLI with fang enhancements.
func Execute(ctx context.Context) error {
	return fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(version.Short()),
		fang.WithCommit(version.Commit),
	)
}

// openApp loads configuration and assembles the application. Callers must
// invoke the returned cleanup when done.
func openApp() (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Server.URL == "" {
		return nil, nil, fmt.Errorf("no server configured, set SATCHEL_SERVER_URL")
	}

	a, err := app.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, func() { _ = a.Stop() }, nil
}
