package transcript

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTranscript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return path
}

func TestParser(t *testing.T) {
	ctx := context.Background()

	t.Run("basic exchange yields prompt, tool_call, response", func(t *testing.T) {
		content := `{"sessionId":"sess-1","type":"user","timestamp":"2026-02-01T10:00:00Z","cwd":"/tmp/project","gitBranch":"main","message":{"role":"user","content":"fix the bug"}}
{"sessionId":"sess-1","type":"assistant","timestamp":"2026-02-01T10:00:05Z","message":{"role":"assistant","model":"claude-sonnet-4","content":[{"type":"tool_use","id":"tc1","name":"Bash","input":{"command":"go test ./...","description":"run tests"}},{"type":"text","text":"Running the tests now."}],"usage":{"input_tokens":100,"output_tokens":20}}}`
		parser := &Parser{}
		session, err := parser.Parse(ctx, strings.NewReader(content))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if session == nil {
			t.Fatal("expected a session")
		}
		if session.SessionID != "sess-1" || session.ProjectPath != "/tmp/project" || session.GitBranch != "main" {
			t.Fatalf("bad seed: %q %q %q", session.SessionID, session.ProjectPath, session.GitBranch)
		}
		if len(session.Interactions) != 3 {
			t.Fatalf("expected 3 interactions, got %d", len(session.Interactions))
		}
		if session.Interactions[0].Type != InteractionPrompt || session.Interactions[1].Type != InteractionToolCall || session.Interactions[2].Type != InteractionResponse {
			t.Fatalf("unexpected interaction order: %v %v %v",
				session.Interactions[0].Type, session.Interactions[1].Type, session.Interactions[2].Type)
		}
		if got := session.InputTokens + session.OutputTokens; got != 120 {
			t.Fatalf("expected 120 total tokens, got %d", got)
		}
		if session.Interactions[1].Meta.ToolName != "Bash" {
			t.Fatalf("unexpected tool name: %q", session.Interactions[1].Meta.ToolName)
		}
	})

	t.Run("timestamps preserve source order", func(t *testing.T) {
		content := `{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:00Z","message":{"role":"user","content":"one"}}
{"sessionId":"s","type":"assistant","timestamp":"2026-02-01T10:00:02Z","message":{"role":"assistant","content":"a","usage":{"input_tokens":1,"output_tokens":1}}}
{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:04Z","message":{"role":"user","content":"two"}}`
		session, err := (&Parser{}).Parse(ctx, strings.NewReader(content))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		for i := 1; i < len(session.Interactions); i++ {
			if session.Interactions[i].Timestamp.Before(session.Interactions[i-1].Timestamp) {
				t.Fatalf("timestamps regress at %d", i)
			}
		}
	})

	t.Run("command echoes and system reminders are suppressed", func(t *testing.T) {
		content := `{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:00Z","message":{"role":"user","content":"<command-name>/clear</command-name>"}}
{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:01Z","message":{"role":"user","content":"<local-command-stdout>done</local-command-stdout>"}}
{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:02Z","message":{"role":"user","content":"<system-reminder>remember</system-reminder>"}}
{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:03Z","message":{"role":"user","content":"real prompt"}}`
		session, err := (&Parser{}).Parse(ctx, strings.NewReader(content))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if len(session.Interactions) != 1 || session.Interactions[0].Content != "real prompt" {
			t.Fatalf("expected only the real prompt, got %#v", session.Interactions)
		}
	})

	t.Run("malformed line is skipped and counted", func(t *testing.T) {
		content := `{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:00Z","message":{"role":"user","content":"hello"}}
{not json at all}
{"sessionId":"s","type":"assistant","timestamp":"2026-02-01T10:00:01Z","message":{"role":"assistant","content":"hi","usage":{"input_tokens":5,"output_tokens":5}}}`
		session, err := (&Parser{}).Parse(ctx, strings.NewReader(content))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if len(session.Interactions) != 2 {
			t.Fatalf("expected 2 interactions, got %d", len(session.Interactions))
		}
		if session.ParseErrors != 1 {
			t.Fatalf("expected 1 parse error, got %d", session.ParseErrors)
		}
	})

	t.Run("TodoWrite and ExitPlanMode become snapshots, not tool calls", func(t *testing.T) {
		content := `{"sessionId":"s","type":"assistant","timestamp":"2026-02-01T10:00:00Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"TodoWrite","input":{"todos":[{"content":"write tests","status":"pending","activeForm":"writing tests"}]}},{"type":"tool_use","id":"t2","name":"ExitPlanMode","input":{"plan":"1. do the thing"}}],"usage":{"input_tokens":10,"output_tokens":2}}}`
		session, err := (&Parser{}).Parse(ctx, strings.NewReader(content))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		for _, in := range session.Interactions {
			if in.Type == InteractionToolCall {
				t.Fatalf("unexpected tool_call interaction: %#v", in)
			}
		}
		if len(session.Todos) != 1 || session.Todos[0].Items[0].Content != "write tests" {
			t.Fatalf("missing todo snapshot: %#v", session.Todos)
		}
		if len(session.Plans) != 1 || session.Plans[0].Text != "1. do the thing" {
			t.Fatalf("missing plan snapshot: %#v", session.Plans)
		}
		if session.PlanCycles != 1 || len(session.PlanExits) != 1 {
			t.Fatalf("plan stats wrong: %d %d", session.PlanCycles, len(session.PlanExits))
		}
	})

	t.Run("edit tool result produces a follow-up tool call", func(t *testing.T) {
		content := `{"sessionId":"s","type":"assistant","timestamp":"2026-02-01T10:00:00Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"e1","name":"Edit","input":{"file_path":"/tmp/main.go","old_string":"a","new_string":"b"}}],"usage":{"input_tokens":3,"output_tokens":1}}}
{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:01Z","toolUseResult":{"filePath":"/tmp/main.go","structuredPatch":[{"lines":["-a","+b"]}]},"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"e1","content":"ok"}]}}`
		session, err := (&Parser{}).Parse(ctx, strings.NewReader(content))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		var followUps []Interaction
		for _, in := range session.Interactions {
			if in.Type == InteractionToolCall && in.Meta.ToolResponse != "" {
				followUps = append(followUps, in)
			}
		}
		if len(followUps) != 1 {
			t.Fatalf("expected 1 follow-up, got %d", len(followUps))
		}
		if !strings.Contains(followUps[0].Content, "/tmp/main.go") {
			t.Fatalf("follow-up missing file path: %q", followUps[0].Content)
		}
		if got := session.Languages; len(got) != 1 || got[0] != "Go" {
			t.Fatalf("expected Go language detection, got %v", got)
		}
	})

	t.Run("Task result registers a sub-agent link", func(t *testing.T) {
		content := `{"sessionId":"s","type":"assistant","timestamp":"2026-02-01T10:00:00Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"task1","name":"Task","input":{"description":"explore","prompt":"look around"}}],"usage":{"input_tokens":3,"output_tokens":1}}}
{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:05Z","toolUseResult":{"agentId":"abc123"},"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"task1","content":"done"}]}}`
		session, err := (&Parser{}).Parse(ctx, strings.NewReader(content))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		link, ok := session.Subagents["abc123"]
		if !ok {
			t.Fatalf("missing sub-agent link: %#v", session.Subagents)
		}
		if link.Description != "explore" || link.Prompt != "look around" {
			t.Fatalf("bad link: %#v", link)
		}
		if link.InteractionIndex != 0 {
			t.Fatalf("expected spawn at interaction 0, got %d", link.InteractionIndex)
		}
	})

	t.Run("model switches are counted and primary model tracked", func(t *testing.T) {
		content := `{"sessionId":"s","type":"assistant","timestamp":"2026-02-01T10:00:00Z","message":{"role":"assistant","model":"claude-sonnet-4","content":"a","usage":{"input_tokens":1,"output_tokens":1}}}
{"sessionId":"s","type":"assistant","timestamp":"2026-02-01T10:00:01Z","message":{"role":"assistant","model":"claude-opus-4","content":"b","usage":{"input_tokens":1,"output_tokens":1}}}
{"sessionId":"s","type":"assistant","timestamp":"2026-02-01T10:00:02Z","message":{"role":"assistant","model":"claude-sonnet-4","content":"c","usage":{"input_tokens":1,"output_tokens":1}}}`
		session, err := (&Parser{}).Parse(ctx, strings.NewReader(content))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if session.PrimaryModel != "claude-sonnet-4" {
			t.Fatalf("primary model %q", session.PrimaryModel)
		}
		if session.ModelSwitches != 1 {
			t.Fatalf("expected 1 switch, got %d", session.ModelSwitches)
		}
		if session.ModelUsage["claude-sonnet-4"] != 2 || session.ModelUsage["claude-opus-4"] != 1 {
			t.Fatalf("usage counts: %#v", session.ModelUsage)
		}
	})

	t.Run("empty transcript yields no session", func(t *testing.T) {
		session, err := (&Parser{}).Parse(ctx, strings.NewReader(""))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if session != nil {
			t.Fatalf("expected nil session, got %#v", session)
		}
	})

	t.Run("oversized stream is rejected", func(t *testing.T) {
		parser := &Parser{MaxBytes: 64}
		long := strings.Repeat("x", 200)
		if _, err := parser.Parse(ctx, strings.NewReader(long)); err == nil {
			t.Fatal("expected size error")
		}
	})

	t.Run("stream of exactly the ceiling parses", func(t *testing.T) {
		content := `{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:00Z","message":{"role":"user","content":"hello"}}`
		parser := &Parser{MaxBytes: int64(len(content))}
		session, err := parser.Parse(ctx, strings.NewReader(content))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if session == nil || len(session.Interactions) != 1 {
			t.Fatalf("expected 1 interaction, got %#v", session)
		}
	})

	t.Run("oversized file is rejected up front", func(t *testing.T) {
		path := writeTranscript(t, "big.jsonl", strings.Repeat("x", 300))
		parser := &Parser{MaxBytes: 64}
		if _, err := parser.ParseFile(ctx, path); err == nil {
			t.Fatal("expected size error")
		}
	})

	t.Run("last N exchanges trims and refits totals", func(t *testing.T) {
		content := `{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:00Z","message":{"role":"user","content":"one"}}
{"sessionId":"s","type":"assistant","timestamp":"2026-02-01T10:00:01Z","message":{"role":"assistant","content":"a","usage":{"input_tokens":10,"output_tokens":10}}}
{"sessionId":"s","type":"user","timestamp":"2026-02-01T10:00:02Z","message":{"role":"user","content":"two"}}
{"sessionId":"s","type":"assistant","timestamp":"2026-02-01T10:00:03Z","message":{"role":"assistant","content":"b","usage":{"input_tokens":7,"output_tokens":3}}}`
		parser := &Parser{LastExchanges: 1}
		session, err := parser.Parse(ctx, strings.NewReader(content))
		if err != nil {
			t.Fatalf("Parse error: %v", err)
		}
		if len(session.Interactions) != 2 {
			t.Fatalf("expected 2 retained interactions, got %d", len(session.Interactions))
		}
		if session.DroppedInteractions != 2 {
			t.Fatalf("expected 2 dropped, got %d", session.DroppedInteractions)
		}
		if session.InputTokens != 7 || session.OutputTokens != 3 {
			t.Fatalf("totals not refitted: %d %d", session.InputTokens, session.OutputTokens)
		}
		if !session.StartedAt.Equal(session.Interactions[0].Timestamp) {
			t.Fatalf("start time not reset: %v", session.StartedAt)
		}
	})
}
