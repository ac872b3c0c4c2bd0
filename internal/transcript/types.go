package transcript

import (
	"strconv"
	"time"
)

type InteractionType string

const (
	InteractionPrompt   InteractionType = "prompt"
	InteractionResponse InteractionType = "response"
	InteractionToolCall InteractionType = "tool_call"
)

// Interaction is one recorded unit of conversation. Order within a session
// is chronological source order and is never rearranged.
type Interaction struct {
	Type      InteractionType
	Content   string
	Timestamp time.Time
	Meta      InteractionMeta
}

type InteractionMeta struct {
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	ToolName            string
	ToolInput           string
	ToolResponse        string
}

// StringMap flattens the metadata into the string-valued form the backend
// accepts. Zero-valued fields are omitted.
func (m InteractionMeta) StringMap() map[string]string {
	out := map[string]string{}
	if m.Model != "" {
		out["model"] = m.Model
	}
	if m.InputTokens != 0 {
		out["input_tokens"] = strconv.Itoa(m.InputTokens)
	}
	if m.OutputTokens != 0 {
		out["output_tokens"] = strconv.Itoa(m.OutputTokens)
	}
	if m.CacheCreationTokens != 0 {
		out["cache_creation_tokens"] = strconv.Itoa(m.CacheCreationTokens)
	}
	if m.CacheReadTokens != 0 {
		out["cache_read_tokens"] = strconv.Itoa(m.CacheReadTokens)
	}
	if m.ToolName != "" {
		out["tool_name"] = m.ToolName
	}
	if m.ToolInput != "" {
		out["tool_input"] = m.ToolInput
	}
	if m.ToolResponse != "" {
		out["tool_response"] = m.ToolResponse
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type TodoItem struct {
	Content    string `json:"content"`
	Status     string `json:"status"`
	ActiveForm string `json:"activeForm"`
}

type TodoSnapshot struct {
	Timestamp time.Time
	Items     []TodoItem
}

type PlanSnapshot struct {
	Timestamp time.Time
	Text      string
}

// AttachmentRecord describes one uploaded inline attachment. Index is the
// zero-based reference embedded in the rewritten message content.
type AttachmentRecord struct {
	Index            int
	InteractionIndex int
	Type             string
	StorageLocation  string
	PublicURL        string
	MediaType        string
	Filename         string
	SizeBytes        int64
	UploadedAt       time.Time
}

// SubagentLink records where a Task tool spawned a sub-agent. A link exists
// only when a Task result carried an agent id; the transcript itself may
// still be missing.
type SubagentLink struct {
	AgentID          string
	InteractionIndex int
	Description      string
	Prompt           string
}

// Session is the assembled record of one transcript. It is built once per
// parse and treated as immutable afterwards; later stages derive new values
// rather than mutating it.
type Session struct {
	SessionID           string
	ProjectPath         string
	GitBranch           string
	StartedAt           time.Time
	EndedAt             time.Time
	Interactions        []Interaction
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	Languages           []string
	ModelUsage          map[string]int
	PrimaryModel        string
	ModelSwitches       int
	PlanCycles          int
	PlanExits           []time.Time
	Plans               []PlanSnapshot
	Todos               []TodoSnapshot
	Attachments         []AttachmentRecord
	Subagents           map[string]SubagentLink
	SubSessions         []SubSession
	DroppedInteractions int
	ParseErrors         int
	UploadFailures      int
}

// SubSession is a sub-agent thread with the same shape as its parent,
// linked back via AgentID and the interaction index that spawned it.
type SubSession struct {
	AgentID          string
	InteractionIndex int
	Session
}

// TotalTokens is the input plus output sum over the currently retained
// interactions.
func (s *Session) TotalTokens() int {
	return s.InputTokens + s.OutputTokens
}

// Refit recomputes every token aggregate strictly from the metadata of the
// retained interactions and resets the apparent start time to the first
// retained timestamp. Used after exchange filtering.
func (s *Session) Refit() {
	s.InputTokens = 0
	s.OutputTokens = 0
	s.CacheCreationTokens = 0
	s.CacheReadTokens = 0
	for _, in := range s.Interactions {
		s.InputTokens += in.Meta.InputTokens
		s.OutputTokens += in.Meta.OutputTokens
		s.CacheCreationTokens += in.Meta.CacheCreationTokens
		s.CacheReadTokens += in.Meta.CacheReadTokens
	}
	if len(s.Interactions) > 0 && !s.Interactions[0].Timestamp.IsZero() {
		s.StartedAt = s.Interactions[0].Timestamp
	}
}

func (s *Session) recordModel(model string) {
	if model == "" {
		return
	}
	if s.ModelUsage == nil {
		s.ModelUsage = map[string]int{}
	}
	if len(s.ModelUsage) > 0 && s.ModelUsage[model] == 0 {
		s.ModelSwitches++
	}
	s.ModelUsage[model]++
	best := ""
	bestCount := -1
	for name, count := range s.ModelUsage {
		if count > bestCount || (count == bestCount && name < best) {
			best = name
			bestCount = count
		}
	}
	s.PrimaryModel = best
}
