package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication and quota state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := requireCredential(cfg); err != nil {
				return err
			}
			client := newClient(cfg)

			if err := client.ValidateCredential(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credential: ok")

			quota, err := client.GetQuota(cmd.Context())
			if err != nil {
				return err
			}
			if quota.Unlimited() {
				fmt.Fprintf(cmd.OutOrStdout(), "quota: %d sessions used (unlimited, %s)\n", quota.Current, quota.Tier)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "quota: %d/%d sessions used, %d remaining (%s)\n",
				quota.Current, quota.Limit, quota.Remaining, quota.Tier)
			return nil
		},
	}
}
