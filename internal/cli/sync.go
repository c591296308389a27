package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/syncer"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass now",
	Long: `Run one synchronization pass against the server.

Replays queued offline changes in the order they were made, pulls
server-side changes since the last sync, and applies any registered
conflict resolution policies.

Examples:
  satchel sync
  satchel sync --force`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "run even if a background pass is in flight")
}

func runSync(cmd *cobra.Command, args []string) error {
	a, cleanup, err := openApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()

	var result *syncer.Result
	if syncForce {
		result, err = a.Engine().ForceSync(ctx)
	} else {
		result, err = a.Engine().Sync(ctx)
	}
	switch {
	case errors.Is(err, syncer.ErrSyncInProgress):
		fmt.Println("A sync pass is already running. Use --force to run anyway.")
		return nil
	case errors.Is(err, syncer.ErrNoCredentials):
		return fmt.Errorf("not logged in, run 'satchel login' first")
	case err != nil:
		return fmt.Errorf("sync: %w", err)
	}

	fmt.Printf("Synced %d queued change(s), %d failed.\n", result.Synced, result.Failed)
	fmt.Printf("Pulled %d server record(s), resolved %d conflict(s).\n", result.Pulled, result.Resolved)
	return nil
}
