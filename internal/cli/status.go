package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local store and sync status",
	Long: `Show the state of the local store: who is logged in, when the last
sync happened, and how many changes are queued or in conflict.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, cleanup, err := openApp()
	if err != nil {
		return err
	}
	defer cleanup()

	st := a.Store()

	userCtx, err := st.UserContext()
	if err != nil {
		return fmt.Errorf("load user context: %w", err)
	}
	if userCtx == nil {
		fmt.Println("Not logged in.")
	} else {
		fmt.Printf("Logged in as user %d (%s)\n", userCtx.UserID, userCtx.Role)
		if userCtx.HasTenant() {
			fmt.Printf("School: %d\n", userCtx.SchoolID)
		}
	}

	lastSync, err := st.LastSyncTime()
	if err != nil {
		return fmt.Errorf("load last sync time: %w", err)
	}
	fmt.Printf("Last sync: %s (%s ago)\n",
		lastSync.Local().Format(time.RFC1123),
		time.Since(lastSync).Round(time.Second))

	for _, status := range []models.OperationStatus{
		models.OperationPending,
		models.OperationConflicted,
		models.OperationStalled,
	} {
		count, err := st.CountOperations(status)
		if err != nil {
			return fmt.Errorf("count %s operations: %w", status, err)
		}
		fmt.Printf("Operations %s: %d\n", status, count)
	}

	conflicts, err := st.CountConflicts()
	if err != nil {
		return fmt.Errorf("count conflicts: %w", err)
	}
	fmt.Printf("Unresolved conflicts: %d\n", conflicts)

	return nil
}
