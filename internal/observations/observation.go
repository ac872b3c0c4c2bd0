// Package observations models distilled project insights and renders them
// into a bounded context block for injection into a new session.
package observations

import "time"

type Type string

const (
	TypeDecision  Type = "decision"
	TypeBugfix    Type = "bugfix"
	TypeFeature   Type = "feature"
	TypeRefactor  Type = "refactor"
	TypeDiscovery Type = "discovery"
	TypeChange    Type = "change"
)

type Scope string

const (
	ScopeSession Scope = "session"
	ScopeProject Scope = "project"
)

type LifecycleState string

const (
	StateDraft      LifecycleState = "draft"
	StateActive     LifecycleState = "active"
	StateDeprecated LifecycleState = "deprecated"
	StateSuperseded LifecycleState = "superseded"
)

// Observation is owned by the remote store; this is a read snapshot.
type Observation struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"sessionId"`
	ProjectID      string         `json:"projectId"`
	Type           Type           `json:"type"`
	Title          string         `json:"title"`
	Subtitle       string         `json:"subtitle,omitempty"`
	Narrative      string         `json:"narrative"`
	Facts          []string       `json:"facts,omitempty"`
	Concepts       []string       `json:"concepts,omitempty"`
	Files          []string       `json:"files,omitempty"`
	Scope          Scope          `json:"scope,omitempty"`
	LifecycleState LifecycleState `json:"lifecycleState,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// scope and lifecycleState were added after the first schema; older rows
// omit them and mean session/active.
func (o Observation) effectiveScope() Scope {
	if o.Scope == "" {
		return ScopeSession
	}
	return o.Scope
}

func (o Observation) effectiveState() LifecycleState {
	if o.LifecycleState == "" {
		return StateActive
	}
	return o.LifecycleState
}

var typeGlyphs = map[Type]string{
	TypeDecision:  "⚖️",
	TypeBugfix:    "🐛",
	TypeFeature:   "✨",
	TypeRefactor:  "♻️",
	TypeDiscovery: "🔍",
	TypeChange:    "✏️",
}

func (o Observation) glyph() string {
	if g, ok := typeGlyphs[o.Type]; ok {
		return g
	}
	return "•"
}
