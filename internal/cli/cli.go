package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/claude_code_memory/internal/backend"
	"github.com/baaaaaaaka/claude_code_memory/internal/config"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

type rootOptions struct {
	configPath string
}

func Execute() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "claude-memory",
		Short:         "Capture Claude Code sessions and inject project memory",
		SilenceErrors: false,
		SilenceUsage:  true,
		Version:       buildVersion(),
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Override config file path (default: OS user config dir)")

	cmd.AddCommand(
		newCaptureCmd(opts),
		newContextCmd(opts),
		newLoginCmd(opts),
		newImportCmd(opts),
		newStatusCmd(opts),
	)

	return cmd
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}

func loadConfig(opts *rootOptions) (config.Config, *config.Store, error) {
	store, err := config.NewStore(opts.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := store.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, store, nil
}

func newClient(cfg config.Config) *backend.Client {
	return backend.New(cfg.EffectiveBackendURL(), cfg.Credential)
}

func requireCredential(cfg config.Config) error {
	if cfg.Credential == "" {
		_, _ = fmt.Fprintln(os.Stderr, "no credential configured; run `claude-memory login` first")
		return fmt.Errorf("not authenticated")
	}
	return nil
}
