package agentloop

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// promptContext is what a template's system prompt markers (e.g.
// {{.Hostname}}) can reference. It is built once, in the child's own
// environment, so the rendered text reflects the sandbox the child
// actually runs in rather than the host's.
type promptContext struct {
	Hostname string
	Env      map[string]string
}

func newPromptContext() promptContext {
	hostname, _ := os.Hostname()
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return promptContext{Hostname: hostname, Env: env}
}

// renderSystemPrompt evaluates a template's raw SystemPrompt text once. A
// template with no markers renders unchanged; a malformed template falls
// back to the raw text rather than failing the session startup over it.
func renderSystemPrompt(raw string) string {
	tmpl, err := template.New("system").Parse(raw)
	if err != nil {
		return raw
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newPromptContext()); err != nil {
		return raw
	}
	return buf.String()
}
