package transcript

import (
	"encoding/json"
	"strings"
	"time"
)

type eventKind int

const (
	eventUnrecognized eventKind = iota
	eventUser
	eventAssistant
)

type envelope struct {
	Type      string          `json:"type"`
	IsMeta    bool            `json:"isMeta"`
	SessionID string          `json:"sessionId"`
	Timestamp string          `json:"timestamp"`
	Cwd       string          `json:"cwd"`
	GitBranch string          `json:"gitBranch"`
	Message   json.RawMessage `json:"message"`
	// Post-execution tool details attached to tool_result events.
	ToolUseResult json.RawMessage `json:"toolUseResult"`
	HookEvent     string          `json:"hook_event"`
}

func (e envelope) kind() eventKind {
	switch e.Type {
	case "user":
		return eventUser
	case "assistant":
		return eventAssistant
	}
	return eventUnrecognized
}

func (e envelope) time() time.Time {
	return parseTime(e.Timestamp)
}

type message struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *usage          `json:"usage"`
}

type usage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens"`
	CacheReadTokens     int `json:"cache_read_input_tokens"`
}

type contentKind int

const (
	contentUnrecognized contentKind = iota
	contentText
	contentToolUse
	contentToolResult
	contentImage
)

type contentItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Thinking  string          `json:"thinking"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	IsError   bool            `json:"is_error"`
	Content   json.RawMessage `json:"content"`
	Source    *imageSource    `json:"source"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
	URL       string `json:"url"`
}

func (c contentItem) kind() contentKind {
	switch c.Type {
	case "text":
		return contentText
	case "tool_use":
		return contentToolUse
	case "tool_result":
		return contentToolResult
	case "image":
		return contentImage
	}
	return contentUnrecognized
}

// decodeContent accepts the two shapes message.content takes in transcripts:
// a bare string or an array of typed items.
func decodeContent(raw json.RawMessage) (string, []contentItem, bool) {
	if len(raw) == 0 {
		return "", nil, false
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil, true
	}
	var items []contentItem
	if err := json.Unmarshal(raw, &items); err == nil {
		return "", items, true
	}
	return "", nil, false
}

func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}
	var items []contentItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	var parts []string
	for _, item := range items {
		if item.kind() == contentText && strings.TrimSpace(item.Text) != "" {
			parts = append(parts, item.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Time{}
}

// Markers for user text that is command plumbing rather than a prompt.
var metaContentMarkers = []string{
	"<command-name>",
	"<command-message>",
	"<command-args>",
	"<local-command-stdout>",
	"<local-command-stderr>",
	"<local-command-caveat>",
	"<system-reminder>",
	"memory edit error",
}

func isMetaContent(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range metaContentMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
