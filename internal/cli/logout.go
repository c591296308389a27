package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and wipe local data",
	Long: `Sign out of the server and remove all locally cached school data,
queued changes included.

The local wipe only happens after the server confirms the logout. If the
server cannot be reached, nothing is deleted, so changes captured while
offline survive until a successful logout or sync.`,
	Args: cobra.NoArgs,
	RunE: runLogout,
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, cleanup, err := openApp()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.Logout(cmd.Context()); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	fmt.Println("Logged out. Local data wiped.")
	return nil
}
