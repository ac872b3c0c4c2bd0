package hook

import (
	"context"
	"fmt"
	"io"

	"github.com/baaaaaaaka/claude_code_memory/internal/backend"
	"github.com/baaaaaaaka/claude_code_memory/internal/config"
	"github.com/baaaaaaaka/claude_code_memory/internal/observations"
)

// observationFetchLimit bounds one context fetch; the token budget trims
// further after rendering.
const observationFetchLimit = 100

// InjectContext renders stored observations for the configured project and
// writes the bounded context block to w for the hook runner to inject.
// With no project configured there is nothing to inject.
func InjectContext(ctx context.Context, cfg config.Config, client *backend.Client, w io.Writer) error {
	if cfg.ProjectID == "" {
		return nil
	}
	obs, _, err := client.GetObservations(ctx, cfg.ProjectID, observationFetchLimit)
	if err != nil {
		return err
	}
	rendered := observations.Format(obs, observations.FormatOptions{
		ProjectName:       cfg.ProjectName,
		IncludeDrafts:     cfg.IncludeDrafts,
		IncludeDeprecated: cfg.IncludeDeprecated,
		Overview:          true,
		DetailCount:       cfg.EffectiveContextDetail(),
		MaxTokens:         cfg.EffectiveContextTokens(),
	})
	_, err = fmt.Fprintln(w, rendered)
	return err
}
