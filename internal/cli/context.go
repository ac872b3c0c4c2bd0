package cli

import (
	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/claude_code_memory/internal/hook"
)

func newContextCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Print the project memory block for session start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := requireCredential(cfg); err != nil {
				return err
			}
			return hook.InjectContext(cmd.Context(), cfg, newClient(cfg), cmd.OutOrStdout())
		},
	}
}
