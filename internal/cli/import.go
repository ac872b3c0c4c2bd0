package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/claude_code_memory/internal/config"
	"github.com/baaaaaaaka/claude_code_memory/internal/hook"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Bulk-import historical transcripts from a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := requireCredential(cfg); err != nil {
				return err
			}
			ledger, err := config.NewImportLedgerStore(opts.configPath)
			if err != nil {
				return err
			}

			report, err := hook.BulkImport(cmd.Context(), cfg, newClient(cfg), ledger, args[0], nil)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, failed %d, skipped %d\n",
				report.Processed, report.Failed, report.Skipped)
			if report.Quota != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "quota limited this run: %s\n", report.Quota.Error())
			}
			return err
		},
	}
	return cmd
}
