package types

// Template is the read-only blueprint a Session is instantiated from.
type Template struct {
	Name          string               `yaml:"name" json:"name"`
	Description   string               `yaml:"description,omitempty" json:"description,omitempty"`
	Model         string               `yaml:"model" json:"model"`
	ToolAllowlist []ToolAllowlistEntry `yaml:"toolAllowlist,omitempty" json:"toolAllowlist,omitempty"`
	Labels        map[string]string    `yaml:"labels,omitempty" json:"labels,omitempty"`

	// SystemPrompt may contain template markers (e.g. {{.Hostname}}) that
	// are rendered once, in the child's environment, at agent loop startup.
	SystemPrompt string `yaml:"systemPrompt" json:"systemPrompt"`
}

// RecordID implements types.Record.
func (t *Template) RecordID() string {
	return t.Name
}
