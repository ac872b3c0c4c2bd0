package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/baaaaaaaka/claude_code_memory/internal/config"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var backendURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store and validate a backend credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if backendURL != "" {
				cfg.BackendURL = backendURL
			}

			credential, err := readCredential(cmd)
			if err != nil {
				return err
			}
			if credential == "" {
				return fmt.Errorf("empty credential")
			}
			cfg.Credential = credential

			if err := newClient(cfg).ValidateCredential(cmd.Context()); err != nil {
				return err
			}
			if err := store.Update(func(c *config.Config) error {
				c.BackendURL = cfg.BackendURL
				c.Credential = cfg.Credential
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credential validated and saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&backendURL, "backend", "", "Backend base URL")
	return cmd
}

// readCredential avoids echoing the key when stdin is a terminal and falls
// back to a plain line read when it is piped in.
func readCredential(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.OutOrStdout(), "API key: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read credential: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return strings.TrimSpace(line), nil
}
