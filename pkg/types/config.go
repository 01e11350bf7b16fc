package types

import "time"

// Config is the daemon's config.yml. Unknown keys are not
// preserved here (unlike Session/Template records) since config.yml is
// operator-authored, not read-modify-written by the daemon.
type Config struct {
	// Unattended, when true, makes an unresolved allowlist check return
	// FAILURE instead of emitting an approval_request.
	Unattended bool `yaml:"unattended" json:"unattended"`

	// AllowlistPath points at the per-user allowlist file.
	AllowlistPath string `yaml:"allowlistPath,omitempty" json:"allowlistPath,omitempty"`

	// Provider holds credentials/endpoints for named providers, read only
	// by the host process.
	Provider map[string]ProviderConfig `yaml:"provider,omitempty" json:"provider,omitempty"`

	// DoomLoopDetection gates the repeated-call pre-check that sends a
	// shell__execute call for human approval once it has been made with
	// identical arguments several times in a row.
	DoomLoopDetection bool `yaml:"doomLoopDetection" json:"doomLoopDetection"`

	// Compaction gates the context-window compaction step.
	Compaction CompactionConfig `yaml:"compaction,omitempty" json:"compaction,omitempty"`

	// TickInterval overrides the agent loop's ~2s poll.
	TickInterval time.Duration `yaml:"tickInterval,omitempty" json:"tickInterval,omitempty"`

	// BridgeTimeout overrides the default host<->child round-trip deadline.
	BridgeTimeout time.Duration `yaml:"bridgeTimeout,omitempty" json:"bridgeTimeout,omitempty"`

	// MCP servers registered as additional tool sources.
	MCP map[string]MCPConfig `yaml:"mcp,omitempty" json:"mcp,omitempty"`

	// LogLevel controls the zerolog level.
	LogLevel string `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`

	// WebSearch holds the Google Custom Search credentials the
	// web__search tool uses. Read only by the host process, exactly
	// like Provider credentials.
	WebSearch WebSearchConfig `yaml:"webSearch,omitempty" json:"webSearch,omitempty"`
}

// WebSearchConfig is the Google Custom Search JSON API credential pair the
// web__search tool needs: an API key and a search engine id (cx).
type WebSearchConfig struct {
	APIKey string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	CX     string `yaml:"cx,omitempty" json:"cx,omitempty"`
}

// CompactionConfig gates and sizes the context-window compaction step.
type CompactionConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	MaxContextTokens int  `yaml:"maxContextTokens,omitempty" json:"maxContextTokens,omitempty"`
}

// ProviderConfig holds credentials/endpoint configuration for one provider,
// read only by the host process.
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	BaseURL string `yaml:"baseURL,omitempty" json:"baseURL,omitempty"`
}

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	Command     []string          `yaml:"command,omitempty" json:"command,omitempty"`
	URL         string            `yaml:"url,omitempty" json:"url,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`
	Enabled     bool              `yaml:"enabled" json:"enabled"`
}

// Model describes an LLM model available from a provider, used to validate
// the "<provider>:<model>" identifier syntax and to decide
// tool-support.
type Model struct {
	ProviderID      string `yaml:"providerID" json:"providerID"`
	ModelID         string `yaml:"modelID" json:"modelID"`
	SupportsTools   bool   `yaml:"supportsTools" json:"supportsTools"`
	MaxOutputTokens int    `yaml:"maxOutputTokens,omitempty" json:"maxOutputTokens,omitempty"`
}
