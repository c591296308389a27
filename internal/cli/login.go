package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginSchoolID int64

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Authenticate against the server",
	Long: `Authenticate against the school-management server and store the
resulting credentials locally. The password is read from stdin.

Examples:
  satchel login teacher@school.example
  satchel login admin --school 12`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().Int64Var(&loginSchoolID, "school", 0, "school id to scope the session to")
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := args[0]

	password, err := readPassword()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	a, cleanup, err := openApp()
	if err != nil {
		return err
	}
	defer cleanup()

	userCtx, err := a.Login(cmd.Context(), username, password, loginSchoolID)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	fmt.Printf("Logged in as user %d (%s).\n", userCtx.UserID, userCtx.Role)
	return nil
}

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	// Piped input, e.g. from a secret manager.
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
