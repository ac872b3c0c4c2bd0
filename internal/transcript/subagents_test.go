package transcript

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLinkSubagents(t *testing.T) {
	ctx := context.Background()

	parent := `{"sessionId":"parent-1","type":"assistant","timestamp":"2026-02-01T10:00:00Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"task1","name":"Task","input":{"description":"explore","prompt":"look"}}],"usage":{"input_tokens":10,"output_tokens":5}}}
{"sessionId":"parent-1","type":"user","timestamp":"2026-02-01T10:00:10Z","toolUseResult":{"agentId":"agent9"},"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"task1","content":"done"}]}}`

	subContent := `{"sessionId":"sub","type":"user","timestamp":"2026-02-01T10:00:01Z","message":{"role":"user","content":"look"}}
{"sessionId":"sub","type":"assistant","timestamp":"2026-02-01T10:00:02Z","message":{"role":"assistant","content":"found it","usage":{"input_tokens":40,"output_tokens":10}}}`

	parse := func(t *testing.T) *Session {
		t.Helper()
		session, err := (&Parser{}).Parse(ctx, strings.NewReader(parent))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		return session
	}

	writeFile := func(t *testing.T, path, content string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	t.Run("versioned layout wins over legacy", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "parent-1", "subagents", "agent-agent9.jsonl"), subContent)
		writeFile(t, filepath.Join(dir, "agent-agent9.jsonl"), "") // legacy decoy

		session := parse(t)
		(&Parser{}).LinkSubagents(ctx, session, dir)
		if len(session.SubSessions) != 1 {
			t.Fatalf("expected 1 sub-session, got %d", len(session.SubSessions))
		}
		sub := session.SubSessions[0]
		if sub.AgentID != "agent9" || len(sub.Interactions) != 2 {
			t.Fatalf("bad sub-session: %#v", sub)
		}
		if session.InputTokens != 50 || session.OutputTokens != 15 {
			t.Fatalf("tokens not folded in: %d/%d", session.InputTokens, session.OutputTokens)
		}
	})

	t.Run("legacy flat layout still resolves", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "agent-agent9.jsonl"), subContent)

		session := parse(t)
		(&Parser{}).LinkSubagents(ctx, session, dir)
		if len(session.SubSessions) != 1 {
			t.Fatalf("expected 1 sub-session, got %d", len(session.SubSessions))
		}
	})

	t.Run("missing transcript drops the link silently", func(t *testing.T) {
		session := parse(t)
		(&Parser{}).LinkSubagents(ctx, session, t.TempDir())
		if len(session.SubSessions) != 0 {
			t.Fatalf("expected no sub-sessions, got %#v", session.SubSessions)
		}
		if session.InputTokens != 10 || session.OutputTokens != 5 {
			t.Fatalf("tokens changed: %d/%d", session.InputTokens, session.OutputTokens)
		}
	})
}
