package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/models"
)

var pendingRequeueStalled bool

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List queued offline changes",
	Long: `List operations waiting to be replayed against the server, oldest
first, along with their retry state.

Operations that failed too many times are marked stalled and skipped by
sync passes; requeue them with --requeue-stalled once the underlying
problem is fixed.`,
	Args: cobra.NoArgs,
	RunE: runPending,
}

func init() {
	pendingCmd.Flags().BoolVar(&pendingRequeueStalled, "requeue-stalled", false, "reset stalled operations back to pending")
}

func runPending(cmd *cobra.Command, args []string) error {
	a, cleanup, err := openApp()
	if err != nil {
		return err
	}
	defer cleanup()

	st := a.Store()

	if pendingRequeueStalled {
		requeued, err := st.RequeueStalled()
		if err != nil {
			return fmt.Errorf("requeue stalled operations: %w", err)
		}
		fmt.Printf("Requeued %d stalled operation(s).\n", requeued)
	}

	var ops []models.PendingOperation
	for _, status := range []models.OperationStatus{
		models.OperationPending,
		models.OperationConflicted,
		models.OperationStalled,
	} {
		batch, err := st.PendingOperations(status)
		if err != nil {
			return fmt.Errorf("list %s operations: %w", status, err)
		}
		ops = append(ops, batch...)
	}

	if len(ops) == 0 {
		fmt.Println("No queued operations.")
		return nil
	}

	fmt.Printf("QUEUED OPERATIONS (%d)\n", len(ops))
	fmt.Println("──────────────────────────────────────────────────")
	for _, op := range ops {
		fmt.Printf("#%d  %-6s %-20s %s\n", op.ID, op.Method, op.Kind, op.CreatedAt.Local().Format(time.RFC822))
		fmt.Printf("     status=%s", op.Status)
		if op.RetryCount > 0 {
			fmt.Printf(" retries=%d", op.RetryCount)
		}
		fmt.Println()
		if op.LastError != "" {
			fmt.Printf("     last error: %s\n", op.LastError)
		}
	}
	return nil
}
