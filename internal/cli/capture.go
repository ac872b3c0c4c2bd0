package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/claude_code_memory/internal/hook"
)

// hookPayload is the JSON Claude Code writes to a hook's stdin.
type hookPayload struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name"`
}

func newCaptureCmd(opts *rootOptions) *cobra.Command {
	var transcriptPath string
	var lastExchanges int

	cmd := &cobra.Command{
		Use:   "capture [transcript]",
		Short: "Capture one session transcript to the memory backend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := requireCredential(cfg); err != nil {
				return err
			}

			path := transcriptPath
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				payload, err := readHookPayload(cmd.InOrStdin())
				if err != nil {
					return err
				}
				path = payload.TranscriptPath
			}
			if strings.TrimSpace(path) == "" {
				return fmt.Errorf("no transcript path given (argument, --transcript, or hook stdin)")
			}

			result, err := hook.CaptureSession(cmd.Context(), cfg, newClient(cfg), hook.CaptureOptions{
				TranscriptPath: path,
				LastExchanges:  lastExchanges,
			})
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "transcript empty, nothing captured")
				return nil
			}
			verb := "created"
			if result.Updated {
				verb = "updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s %s (%d new interactions, encrypted=%v)\n",
				result.SessionID, verb, result.NewInteractions, result.Encrypted)
			return nil
		},
	}

	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "Transcript file to capture")
	cmd.Flags().IntVar(&lastExchanges, "last", 0, "Capture only the last N exchanges (0 = configured default)")
	return cmd
}

func readHookPayload(r io.Reader) (hookPayload, error) {
	var payload hookPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return hookPayload{}, fmt.Errorf("decode hook payload: %w", err)
	}
	return payload, nil
}
