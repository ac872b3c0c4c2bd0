package transcript

import (
	"context"
	"path/filepath"
	"sort"
)

// LinkSubagents resolves and parses the transcript of every sub-agent link
// recorded on the session, folding each sub-session's token totals into the
// parent. A missing sub-agent transcript is not an error; the link is
// silently dropped. dir is the project's session directory.
func (p *Parser) LinkSubagents(ctx context.Context, s *Session, dir string) {
	if len(s.Subagents) == 0 {
		return
	}
	agentIDs := make([]string, 0, len(s.Subagents))
	for agentID := range s.Subagents {
		agentIDs = append(agentIDs, agentID)
	}
	sort.Strings(agentIDs)

	sub := &Parser{MaxBytes: p.MaxBytes, Uploader: p.Uploader, Logger: p.Logger}
	for _, agentID := range agentIDs {
		link := s.Subagents[agentID]
		path := resolveSubagentFile(dir, s.SessionID, agentID)
		if path == "" {
			continue
		}
		parsed, err := sub.ParseFile(ctx, path)
		if err != nil {
			p.logger().Warn("skipping sub-agent transcript", "agent", agentID, "error", err)
			continue
		}
		if parsed == nil || len(parsed.Interactions) == 0 {
			continue
		}
		s.SubSessions = append(s.SubSessions, SubSession{
			AgentID:          agentID,
			InteractionIndex: link.InteractionIndex,
			Session:          *parsed,
		})
		s.InputTokens += parsed.InputTokens
		s.OutputTokens += parsed.OutputTokens
		s.CacheCreationTokens += parsed.CacheCreationTokens
		s.CacheReadTokens += parsed.CacheReadTokens
	}
}

// resolveSubagentFile tries the versioned per-session subdirectory first,
// then the legacy flat layout.
func resolveSubagentFile(dir, sessionID, agentID string) string {
	name := "agent-" + agentID + ".jsonl"
	if sessionID != "" {
		versioned := filepath.Join(dir, sessionID, "subagents", name)
		if isFile(versioned) {
			return versioned
		}
	}
	legacy := filepath.Join(dir, name)
	if isFile(legacy) {
		return legacy
	}
	return ""
}
