package observations

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const truncationNotice = "\n\n[context truncated to fit token budget]"

// FormatOptions controls rendering of the context block.
type FormatOptions struct {
	ProjectName       string
	IncludeDrafts     bool
	IncludeDeprecated bool
	Overview          bool
	DetailCount       int
	// MaxTokens bounds the rendered output, estimated at four characters
	// per token. Zero means unbounded.
	MaxTokens int
}

// Format filters, sorts, and renders observations as progressive-disclosure
// markdown, then enforces the token budget as a hard post-render ceiling.
func Format(all []Observation, opts FormatOptions) string {
	kept := filter(all, opts)
	if len(kept) == 0 {
		// Fall back to session-scoped active observations from the original
		// set before giving up; a stale scope mix should not blank out the
		// context entirely.
		kept = sessionActive(all)
	}
	if len(kept) == 0 {
		return "No observations recorded for this project yet."
	}
	sortByPriority(kept)
	return truncate(render(kept, opts), opts.MaxTokens)
}

// filter drops ineligible lifecycle states. Unknown states are excluded:
// an observation we cannot classify must not leak into a new session.
func filter(all []Observation, opts FormatOptions) []Observation {
	var kept []Observation
	for _, obs := range all {
		switch obs.effectiveState() {
		case StateActive:
		case StateDraft:
			if !opts.IncludeDrafts {
				continue
			}
		case StateDeprecated:
			if !opts.IncludeDeprecated {
				continue
			}
		default:
			continue
		}
		kept = append(kept, obs)
	}
	return kept
}

func sessionActive(all []Observation) []Observation {
	var kept []Observation
	for _, obs := range all {
		if obs.effectiveState() == StateActive && obs.effectiveScope() == ScopeSession {
			kept = append(kept, obs)
		}
	}
	return kept
}

func priorityRank(obs Observation) int {
	state := obs.effectiveState()
	switch {
	case state == StateActive && obs.effectiveScope() == ScopeProject:
		return 0
	case state == StateActive:
		return 1
	case state == StateDraft:
		return 2
	}
	return 3
}

func sortByPriority(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		ri, rj := priorityRank(obs[i]), priorityRank(obs[j])
		if ri != rj {
			return ri < rj
		}
		return obs[i].CreatedAt.After(obs[j].CreatedAt)
	})
}

func render(obs []Observation, opts FormatOptions) string {
	var b strings.Builder
	if opts.ProjectName != "" {
		fmt.Fprintf(&b, "# Project memory: %s\n\n", opts.ProjectName)
	} else {
		b.WriteString("# Project memory\n\n")
	}
	fmt.Fprintf(&b, "%d observation(s) from previous sessions.\n", len(obs))

	if opts.Overview {
		b.WriteString("\n| # | | Title | Files | Date |\n")
		b.WriteString("|---|---|-------|-------|------|\n")
		for i, o := range obs {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				i+1, o.glyph(), o.Title, overviewFiles(o.Files), shortDate(o))
		}
	}

	detail := opts.DetailCount
	if detail > len(obs) {
		detail = len(obs)
	}
	for i := 0; i < detail; i++ {
		o := obs[i]
		fmt.Fprintf(&b, "\n## %s %s\n", o.glyph(), o.Title)
		if o.Subtitle != "" {
			fmt.Fprintf(&b, "_%s_\n", o.Subtitle)
		}
		if o.Narrative != "" {
			b.WriteString("\n" + o.Narrative + "\n")
		}
		for _, fact := range o.Facts {
			b.WriteString("- " + fact + "\n")
		}
		if len(o.Files) > 0 {
			b.WriteString("Files: " + strings.Join(o.Files, ", ") + "\n")
		}
		if len(o.Concepts) > 0 {
			b.WriteString("Tags: " + strings.Join(o.Concepts, ", ") + "\n")
		}
		if date := shortDate(o); date != "" {
			b.WriteString("Date: " + date + "\n")
		}
	}
	if detail > 0 && len(obs) > detail {
		fmt.Fprintf(&b, "\n…and %d more observation(s).\n", len(obs)-detail)
	}
	return b.String()
}

func overviewFiles(files []string) string {
	if len(files) == 0 {
		return ""
	}
	shown := files
	if len(shown) > 2 {
		shown = shown[:2]
	}
	out := strings.Join(shown, ", ")
	if extra := len(files) - len(shown); extra > 0 {
		out += fmt.Sprintf(" +%d", extra)
	}
	return out
}

func shortDate(o Observation) string {
	if o.CreatedAt.IsZero() {
		return ""
	}
	return o.CreatedAt.Format("2006-01-02")
}

// truncate applies the hard output ceiling: maxTokens estimated at four
// characters per token, with a fixed notice appended when anything was cut.
func truncate(rendered string, maxTokens int) string {
	if maxTokens <= 0 {
		return rendered
	}
	maxChars := maxTokens * 4
	if len(rendered) <= maxChars {
		return rendered
	}
	// Back off to a rune boundary so the cut never splits a glyph.
	for maxChars > 0 && !utf8.RuneStart(rendered[maxChars]) {
		maxChars--
	}
	return rendered[:maxChars] + truncationNotice
}
