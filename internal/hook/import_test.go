package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/baaaaaaaka/claude_code_memory/internal/backend"
	"github.com/baaaaaaaka/claude_code_memory/internal/config"
)

func transcriptFor(sessionID, stamp string) string {
	return fmt.Sprintf(`{"sessionId":%q,"type":"user","timestamp":%q,"cwd":"/w","message":{"role":"user","content":"hello"}}
{"sessionId":%q,"type":"assistant","timestamp":%q,"message":{"role":"assistant","content":"hi","usage":{"input_tokens":1,"output_tokens":1}}}`,
		sessionID, stamp, sessionID, stamp)
}

// importBackend accepts every upsert and serves an unlimited quota.
type importBackend struct {
	accepted []string
}

func (b *importBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/v1/quota":
		fmt.Fprint(w, `{"current":0,"limit":-1,"remaining":0,"tier":"pro"}`)
	case "/v1/sessions":
		var req backend.UpsertSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.accepted = append(b.accepted, req.ExternalID)
		fmt.Fprintf(w, `{"sessionId":"remote-%s"}`, req.ExternalID)
	default:
		http.NotFound(w, r)
	}
}

func TestBulkImport(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (string, *config.ImportLedgerStore, *importBackend, *backend.Client) {
		t.Helper()
		dir := t.TempDir()
		ledger, err := config.NewImportLedgerStore(filepath.Join(t.TempDir(), "config.json"))
		if err != nil {
			t.Fatalf("ledger store: %v", err)
		}
		server := &importBackend{}
		ts := httptest.NewServer(server)
		t.Cleanup(ts.Close)
		client := backend.New(ts.URL, "cred")
		client.Logger = quietLogger()
		return dir, ledger, server, client
	}

	write := func(t *testing.T, dir, name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	t.Run("imports oldest first and records the ledger", func(t *testing.T) {
		dir, ledger, server, client := setup(t)
		write(t, dir, "newer.jsonl", transcriptFor("s-new", "2026-02-02T00:00:00Z"))
		write(t, dir, "older.jsonl", transcriptFor("s-old", "2026-01-01T00:00:00Z"))
		write(t, dir, "agent-xyz.jsonl", transcriptFor("sub", "2026-01-15T00:00:00Z"))
		write(t, dir, "notes.txt", "not a transcript")

		report, err := BulkImport(ctx, config.Config{ProjectID: "p1"}, client, ledger, dir, quietLogger())
		if err != nil {
			t.Fatalf("BulkImport: %v", err)
		}
		if report.Processed != 2 || report.Failed != 0 {
			t.Fatalf("report %#v", report)
		}
		if len(server.accepted) != 2 || server.accepted[0] != "s-old" || server.accepted[1] != "s-new" {
			t.Fatalf("submission order %v", server.accepted)
		}

		seen, err := ledger.Load()
		if err != nil {
			t.Fatalf("ledger load: %v", err)
		}
		if !seen.IsImported("s-old") || !seen.IsImported("s-new") {
			t.Fatalf("ledger missing entries: %#v", seen)
		}
	})

	t.Run("second run skips everything already imported", func(t *testing.T) {
		dir, ledger, server, client := setup(t)
		write(t, dir, "a.jsonl", transcriptFor("s-a", "2026-01-01T00:00:00Z"))

		cfg := config.Config{ProjectID: "p1"}
		if _, err := BulkImport(ctx, cfg, client, ledger, dir, quietLogger()); err != nil {
			t.Fatalf("first run: %v", err)
		}
		report, err := BulkImport(ctx, cfg, client, ledger, dir, quietLogger())
		if err != nil {
			t.Fatalf("second run: %v", err)
		}
		if report.Processed != 0 || len(server.accepted) != 1 {
			t.Fatalf("transcript re-imported: %#v %v", report, server.accepted)
		}
	})

	t.Run("unreadable transcript is counted and skipped", func(t *testing.T) {
		dir, ledger, server, client := setup(t)
		write(t, dir, "good.jsonl", transcriptFor("s-good", "2026-01-01T00:00:00Z"))
		write(t, dir, "bad.jsonl.xz", "definitely not xz data")

		report, err := BulkImport(ctx, config.Config{ProjectID: "p1"}, client, ledger, dir, quietLogger())
		if err != nil {
			t.Fatalf("BulkImport: %v", err)
		}
		if report.Processed != 1 || report.Failed != 1 {
			t.Fatalf("report %#v", report)
		}
		if len(server.accepted) != 1 || server.accepted[0] != "s-good" {
			t.Fatalf("accepted %v", server.accepted)
		}
	})
}
