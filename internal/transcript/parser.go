package transcript

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// MaxTranscriptBytes is the hard ceiling on a transcript read. Larger files
// are rejected up front rather than buffered into memory.
const MaxTranscriptBytes = 100 << 20

// Parser turns a line-delimited transcript into a Session. A single
// unparseable line is skipped with a warning and never fails the run.
type Parser struct {
	MaxBytes      int64
	LastExchanges int
	Uploader      Uploader
	Logger        *slog.Logger
}

type pendingTool struct {
	name             string
	interactionIndex int
	description      string
	prompt           string
}

type taskResult struct {
	AgentID string `json:"agentId"`
}

func (p *Parser) maxBytes() int64 {
	if p.MaxBytes > 0 {
		return p.MaxBytes
	}
	return MaxTranscriptBytes
}

// ParseFile parses the transcript at path. A `.jsonl.xz` archive is
// decompressed transparently; the size ceiling applies to the decompressed
// stream. Returns (nil, nil) when the transcript holds no events.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xzReader, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open xz transcript: %w", err)
		}
		reader = xzReader
	} else if info, err := f.Stat(); err == nil && info.Size() > p.maxBytes() {
		return nil, fmt.Errorf("transcript %s exceeds %d bytes", path, p.maxBytes())
	}
	session, err := p.Parse(ctx, reader)
	if err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	return session, nil
}

// Parse consumes the event stream and assembles a Session.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*Session, error) {
	limited := &limitedReader{r: r, max: p.maxBytes(), remaining: p.maxBytes()}
	session := &Session{}
	pending := map[string]pendingTool{}
	seeded := false

	reader := bufio.NewReader(limited)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var env envelope
			if jsonErr := json.Unmarshal(line, &env); jsonErr != nil {
				p.logger().Warn("skipping malformed transcript line", "error", jsonErr)
				session.ParseErrors++
			} else {
				if !seeded && strings.TrimSpace(env.SessionID) != "" {
					session.SessionID = strings.TrimSpace(env.SessionID)
					session.StartedAt = env.time()
					session.ProjectPath = strings.TrimSpace(env.Cwd)
					session.GitBranch = strings.TrimSpace(env.GitBranch)
					seeded = true
				}
				if ts := env.time(); !ts.IsZero() {
					session.EndedAt = ts
				}
				switch env.kind() {
				case eventUser:
					p.handleUser(ctx, session, env, pending)
				case eventAssistant:
					p.handleAssistant(session, env, pending)
				}
			}
		}
		if err == io.EOF {
			break
		}
	}

	if !seeded && len(session.Interactions) == 0 {
		return nil, nil
	}
	if p.LastExchanges > 0 {
		kept, dropped := LastExchanges(session.Interactions, p.LastExchanges)
		if dropped > 0 {
			session.Interactions = kept
			session.DroppedInteractions = dropped
			session.rebaseAttachments(dropped)
			session.Refit()
			return session, nil
		}
	}
	session.Refit()
	return session, nil
}

func (p *Parser) handleUser(ctx context.Context, s *Session, env envelope, pending map[string]pendingTool) {
	if env.IsMeta {
		return
	}
	var msg message
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		return
	}
	text, items, ok := decodeContent(msg.Content)
	if !ok {
		return
	}
	ts := env.time()

	if items == nil {
		p.appendPrompt(s, text, ts)
		return
	}

	var textParts []string
	var images []contentItem
	for _, item := range items {
		switch item.kind() {
		case contentText:
			textParts = append(textParts, item.Text)
		case contentImage:
			images = append(images, item)
		case contentToolResult:
			p.handleToolResult(s, env, item, pending, ts)
		}
	}
	promptText := strings.TrimSpace(strings.Join(textParts, "\n"))
	if len(images) > 0 {
		refs := p.extractAttachments(ctx, s, images, len(s.Interactions))
		if len(refs) > 0 {
			if promptText != "" {
				promptText += "\n"
			}
			promptText += strings.Join(refs, "\n")
		}
	}
	p.appendPrompt(s, promptText, ts)
}

func (p *Parser) appendPrompt(s *Session, text string, ts time.Time) {
	text = strings.TrimSpace(text)
	if text == "" || isMetaContent(text) {
		return
	}
	s.Interactions = append(s.Interactions, Interaction{
		Type:      InteractionPrompt,
		Content:   text,
		Timestamp: ts,
	})
}

func (p *Parser) handleToolResult(s *Session, env envelope, item contentItem, pending map[string]pendingTool, ts time.Time) {
	call, ok := pending[item.ToolUseID]
	if !ok {
		return
	}
	delete(pending, item.ToolUseID)

	if call.name == "Task" {
		var result taskResult
		if len(env.ToolUseResult) > 0 {
			_ = json.Unmarshal(env.ToolUseResult, &result)
		}
		agentID := strings.TrimSpace(result.AgentID)
		if agentID == "" {
			return
		}
		if s.Subagents == nil {
			s.Subagents = map[string]SubagentLink{}
		}
		s.Subagents[agentID] = SubagentLink{
			AgentID:          agentID,
			InteractionIndex: call.interactionIndex,
			Description:      call.description,
			Prompt:           call.prompt,
		}
		return
	}

	if !wantsResultFollowUp(call.name) {
		return
	}
	summary := summarizeToolResult(call.name, env.ToolUseResult)
	if summary == "" {
		summary = toolResultText(item.Content)
	}
	if summary == "" {
		return
	}
	s.Interactions = append(s.Interactions, Interaction{
		Type:      InteractionToolCall,
		Content:   summary,
		Timestamp: ts,
		Meta: InteractionMeta{
			ToolName:     call.name,
			ToolResponse: summary,
		},
	})
}

func (p *Parser) handleAssistant(s *Session, env envelope, pending map[string]pendingTool) {
	var msg message
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		return
	}
	ts := env.time()
	s.recordModel(msg.Model)

	text, items, ok := decodeContent(msg.Content)
	if !ok {
		return
	}
	var textParts []string
	if items == nil {
		textParts = append(textParts, text)
	}
	for _, item := range items {
		switch item.kind() {
		case contentText:
			textParts = append(textParts, item.Text)
		case contentToolUse:
			p.handleToolUse(s, item, ts, pending)
		}
	}

	responseText := strings.TrimSpace(strings.Join(textParts, "\n"))
	if responseText == "" && msg.Usage == nil {
		return
	}
	meta := InteractionMeta{Model: msg.Model}
	if msg.Usage != nil {
		meta.InputTokens = msg.Usage.InputTokens
		meta.OutputTokens = msg.Usage.OutputTokens
		meta.CacheCreationTokens = msg.Usage.CacheCreationTokens
		meta.CacheReadTokens = msg.Usage.CacheReadTokens
	}
	s.Interactions = append(s.Interactions, Interaction{
		Type:      InteractionResponse,
		Content:   responseText,
		Timestamp: ts,
		Meta:      meta,
	})
}

func (p *Parser) handleToolUse(s *Session, item contentItem, ts time.Time, pending map[string]pendingTool) {
	call := pendingTool{name: item.Name, interactionIndex: len(s.Interactions)}

	switch item.Name {
	case "TodoWrite":
		var input struct {
			Todos []TodoItem `json:"todos"`
		}
		if json.Unmarshal(item.Input, &input) == nil && len(input.Todos) > 0 {
			s.Todos = append(s.Todos, TodoSnapshot{Timestamp: ts, Items: input.Todos})
		}
		pending[item.ID] = call
		return
	case "ExitPlanMode":
		var input struct {
			Plan string `json:"plan"`
		}
		if json.Unmarshal(item.Input, &input) == nil {
			s.Plans = append(s.Plans, PlanSnapshot{Timestamp: ts, Text: input.Plan})
		}
		s.PlanCycles++
		s.PlanExits = append(s.PlanExits, ts)
		pending[item.ID] = call
		return
	case "Task":
		var input struct {
			Description string `json:"description"`
			Prompt      string `json:"prompt"`
		}
		if json.Unmarshal(item.Input, &input) == nil {
			call.description = input.Description
			call.prompt = input.Prompt
		}
	}

	s.recordLanguage(item.Input)
	s.Interactions = append(s.Interactions, Interaction{
		Type:      InteractionToolCall,
		Content:   item.Name,
		Timestamp: ts,
		Meta: InteractionMeta{
			ToolName:  item.Name,
			ToolInput: summarizeToolInput(item.Name, item.Input),
		},
	})
	if item.ID != "" {
		pending[item.ID] = call
	}
}

type limitedReader struct {
	r         io.Reader
	max       int64
	remaining int64
}

// Read passes data through until the ceiling would be surpassed. It reads
// up to one byte past the limit so a stream of exactly max bytes still
// reaches EOF cleanly.
func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, fmt.Errorf("transcript exceeds %d bytes", l.max)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, fmt.Errorf("transcript exceeds %d bytes", l.max)
	}
	return n, err
}
