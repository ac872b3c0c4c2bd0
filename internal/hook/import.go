package hook

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/baaaaaaaka/claude_code_memory/internal/backend"
	"github.com/baaaaaaaka/claude_code_memory/internal/config"
	"github.com/baaaaaaaka/claude_code_memory/internal/transcript"
)

// BulkImport submits historical transcripts under dir that the import
// ledger has not seen yet, oldest first, respecting the account quota. The
// quick extracts keep candidate selection cheap on large directories;
// attachments are not uploaded during imports.
func BulkImport(ctx context.Context, cfg config.Config, client *backend.Client, ledger *config.ImportLedgerStore, dir string, logger *slog.Logger) (backend.ImportReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var report backend.ImportReport

	seen, err := ledger.Load()
	if err != nil {
		return report, err
	}
	candidates, err := collectCandidates(dir, seen)
	if err != nil {
		return report, err
	}
	if len(candidates) == 0 {
		return report, nil
	}

	parser := &transcript.Parser{LastExchanges: cfg.LastExchanges, Logger: logger}
	var reqs []backend.UpsertSessionRequest
	pathsByID := map[string]string{}
	for _, path := range candidates {
		session, err := parser.ParseFile(ctx, path)
		if err != nil {
			logger.Warn("skipping unreadable transcript", "path", path, "error", err)
			report.Failed++
			continue
		}
		if session == nil {
			continue
		}
		parser.LinkSubagents(ctx, session, filepath.Dir(path))
		req, err := buildUpsertRequest(cfg, session)
		if err != nil {
			logger.Warn("skipping transcript", "path", path, "error", err)
			report.Failed++
			continue
		}
		reqs = append(reqs, req)
		pathsByID[req.ExternalID] = path
	}

	imported, err := client.ImportSessions(ctx, reqs)
	report.Processed = imported.Processed
	report.Failed += imported.Failed
	report.Skipped = imported.Skipped
	report.Quota = imported.Quota
	report.ProcessedIDs = imported.ProcessedIDs

	if len(imported.ProcessedIDs) > 0 {
		now := time.Now().UTC()
		updateErr := ledger.Update(func(l *config.ImportLedger) error {
			for _, id := range imported.ProcessedIDs {
				l.Upsert(config.ImportLedgerEntry{
					SessionID:  id,
					Path:       pathsByID[id],
					ImportedAt: now,
				})
			}
			return nil
		})
		if updateErr != nil {
			logger.Warn("import ledger update failed", "error", updateErr)
		}
	}
	return report, err
}

// collectCandidates lists primary transcripts not yet imported, oldest
// first by their quick-extracted timestamp.
func collectCandidates(dir string, seen config.ImportLedger) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type candidate struct {
		path  string
		stamp time.Time
	}
	var out []candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".jsonl") && !strings.HasSuffix(name, ".jsonl.xz") {
			continue
		}
		if strings.HasPrefix(name, "agent-") {
			continue
		}
		path := filepath.Join(dir, name)
		sessionID := transcript.QuickSessionID(path)
		if (sessionID != "" && seen.IsImported(sessionID)) || seen.HasPath(path) {
			continue
		}
		out = append(out, candidate{path: path, stamp: transcript.QuickTimestamp(path)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].stamp.Equal(out[j].stamp) {
			return out[i].path < out[j].path
		}
		return out[i].stamp.Before(out[j].stamp)
	})
	paths := make([]string, 0, len(out))
	for _, c := range out {
		paths = append(paths, c.path)
	}
	return paths, nil
}
