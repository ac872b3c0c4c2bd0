package transcript

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	maxToolInputFields = 10
	maxToolInputValue  = 200
)

var editToolFields = map[string]bool{
	"file_path":  true,
	"old_string": true,
	"new_string": true,
	"content":    true,
	"edits":      true,
}

var bashToolFields = map[string]bool{
	"command":     true,
	"description": true,
}

func isEditTool(name string) bool {
	switch name {
	case "Edit", "Write", "MultiEdit", "NotebookEdit":
		return true
	}
	return false
}

func wantsResultFollowUp(name string) bool {
	return isEditTool(name) || name == "WebSearch"
}

// summarizeToolInput reduces a raw tool_use input to the fields worth
// keeping per tool, re-serialized as compact JSON. File-editing tools keep
// only path and diff-relevant fields; Bash keeps the command; everything
// else (including MCP tools) keeps a capped set of primitive fields with
// each string truncated to bound payload size.
func summarizeToolInput(toolName string, raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}

	var keep map[string]bool
	switch {
	case isEditTool(toolName):
		keep = editToolFields
	case toolName == "Bash":
		keep = bashToolFields
	}

	out := map[string]any{}
	if keep != nil {
		for key, value := range fields {
			if !keep[key] {
				continue
			}
			out[key] = truncateValue(value)
		}
	} else {
		names := make([]string, 0, len(fields))
		for key := range fields {
			names = append(names, key)
		}
		sort.Strings(names)
		for _, key := range names {
			if len(out) >= maxToolInputFields {
				break
			}
			value := fields[key]
			switch value.(type) {
			case string, float64, bool:
				out[key] = truncateValue(value)
			}
		}
	}
	if len(out) == 0 {
		return ""
	}
	data, err := json.Marshal(out)
	if err != nil {
		return ""
	}
	return string(data)
}

func truncateValue(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if len(s) <= maxToolInputValue {
		return s
	}
	// Back off to a rune boundary so the cut never splits a glyph.
	cut := maxToolInputValue
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// summarizeToolResult condenses the toolUseResult payload recorded after a
// tool ran. Only a handful of fields matter for the capture.
func summarizeToolResult(toolName string, raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Some tools record a bare string result.
		var asString string
		if json.Unmarshal(raw, &asString) == nil {
			return truncateValue(asString).(string)
		}
		return ""
	}
	var parts []string
	if path, ok := fields["filePath"].(string); ok && path != "" {
		parts = append(parts, "file: "+path)
	}
	if patch, ok := fields["structuredPatch"].([]any); ok && len(patch) > 0 {
		parts = append(parts, fmt.Sprintf("%d hunk(s)", len(patch)))
	}
	if results, ok := fields["results"].([]any); ok {
		parts = append(parts, fmt.Sprintf("%d result(s)", len(results)))
	}
	if query, ok := fields["query"].(string); ok && query != "" {
		parts = append(parts, "query: "+truncateValue(query).(string))
	}
	return strings.Join(parts, ", ")
}

var extensionLanguages = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".rs":    "Rust",
	".rb":    "Ruby",
	".java":  "Java",
	".kt":    "Kotlin",
	".c":     "C",
	".h":     "C",
	".cc":    "C++",
	".cpp":   "C++",
	".cs":    "C#",
	".swift": "Swift",
	".php":   "PHP",
	".sh":    "Shell",
	".sql":   "SQL",
}

// recordLanguage notes the language of a file path touched by a tool call.
func (s *Session) recordLanguage(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var fields struct {
		FilePath     string `json:"file_path"`
		NotebookPath string `json:"notebook_path"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return
	}
	path := fields.FilePath
	if path == "" {
		path = fields.NotebookPath
	}
	if path == "" {
		return
	}
	lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return
	}
	for _, have := range s.Languages {
		if have == lang {
			return
		}
	}
	s.Languages = append(s.Languages, lang)
}
