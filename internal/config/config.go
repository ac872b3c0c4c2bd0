package config

const CurrentVersion = 1

// Config is the on-disk configuration for the capture and context hooks.
type Config struct {
	Version    int    `json:"version"`
	BackendURL string `json:"backendUrl"`
	Credential string `json:"credential,omitempty"`

	ProjectID   string `json:"projectId,omitempty"`
	ProjectName string `json:"projectName,omitempty"`

	// LastExchanges limits a capture to the most recent N prompt/response
	// exchanges; zero captures the whole transcript.
	LastExchanges int `json:"lastExchanges,omitempty"`

	ContextTokens     int  `json:"contextTokens,omitempty"`
	ContextDetail     int  `json:"contextDetail,omitempty"`
	IncludeDrafts     bool `json:"includeDrafts,omitempty"`
	IncludeDeprecated bool `json:"includeDeprecated,omitempty"`

	// MaxPartialFailures marks a capture untrustworthy once this many
	// recoverable failures (bad lines, failed uploads) accumulate. Zero
	// means no ceiling.
	MaxPartialFailures int `json:"maxPartialFailures,omitempty"`
}

const (
	DefaultBackendURL    = "https://memory.example.com"
	DefaultContextTokens = 2000
	DefaultContextDetail = 5
)

func (c Config) EffectiveBackendURL() string {
	if c.BackendURL != "" {
		return c.BackendURL
	}
	return DefaultBackendURL
}

func (c Config) EffectiveContextTokens() int {
	if c.ContextTokens > 0 {
		return c.ContextTokens
	}
	return DefaultContextTokens
}

func (c Config) EffectiveContextDetail() int {
	if c.ContextDetail > 0 {
		return c.ContextDetail
	}
	return DefaultContextDetail
}
