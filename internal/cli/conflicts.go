package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/syncer"
)

var conflictsKeep string

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List unresolved sync conflicts",
	Long: `List records where local offline changes diverged from the server.

Each conflict keeps both snapshots until it is resolved, either by a
registered policy during sync or explicitly with 'conflicts resolve'.`,
	Args: cobra.NoArgs,
	RunE: runConflicts,
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id>",
	Short: "Resolve one conflict explicitly",
	Long: `Resolve a conflict by id.

Examples:
  satchel conflicts resolve 3 --keep local
  satchel conflicts resolve 3 --keep server
  satchel conflicts resolve 3 --keep merge`,
	Args: cobra.ExactArgs(1),
	RunE: runConflictsResolve,
}

func init() {
	conflictsResolveCmd.Flags().StringVar(&conflictsKeep, "keep", "", "resolution to apply: local, server, or merge")
	_ = conflictsResolveCmd.MarkFlagRequired("keep")
	conflictsCmd.AddCommand(conflictsResolveCmd)
}

func runConflicts(cmd *cobra.Command, args []string) error {
	a, cleanup, err := openApp()
	if err != nil {
		return err
	}
	defer cleanup()

	conflicts, err := a.Store().Conflicts()
	if err != nil {
		return fmt.Errorf("list conflicts: %w", err)
	}

	if len(conflicts) == 0 {
		fmt.Println("No unresolved conflicts.")
		return nil
	}

	fmt.Printf("CONFLICTS (%d)\n", len(conflicts))
	fmt.Println("──────────────────────────────────────────────────")
	for _, c := range conflicts {
		fmt.Printf("#%d  %-20s %s  detected %s\n",
			c.ID, c.Kind, c.ObjectID, c.DetectedAt.Local().Format(time.RFC822))
	}
	fmt.Println("\nResolve with 'satchel conflicts resolve <id> --keep local|server|merge'.")
	return nil
}

func runConflictsResolve(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid conflict id %q", args[0])
	}

	var decision syncer.Resolution
	switch conflictsKeep {
	case "local":
		decision = syncer.ResolutionKeepLocal
	case "server":
		decision = syncer.ResolutionKeepServer
	case "merge":
		decision = syncer.ResolutionMerge
	default:
		return fmt.Errorf("--keep must be local, server, or merge")
	}

	a, cleanup, err := openApp()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.Engine().ResolveByID(cmd.Context(), uint(id), decision); err != nil {
		return fmt.Errorf("resolve conflict %d: %w", id, err)
	}

	fmt.Printf("Conflict %d resolved (%s).\n", id, conflictsKeep)
	return nil
}
