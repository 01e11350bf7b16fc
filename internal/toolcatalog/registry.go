package toolcatalog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/daemonctl/daemonctl/internal/logging"
)

// Registry holds every declared tool, built-in and MCP-sourced alike.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Definition
	// order preserves registration order, since alias resolvers are tried
	// in the order their tools were registered.
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Definition)}
}

// Register adds a tool definition, replacing any earlier registration under
// the same name.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.tools[def.Name] = def
	logging.Debug().Str("tool", def.Name).Msg("toolcatalog: registered")
}

// Get looks up a tool by its canonical name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// List returns every registered tool, in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name])
	}
	return defs
}

// Resolved is what command-string resolution settles on.
type Resolved struct {
	Name       string
	Args       map[string]any
	Positional []string
	Def        Definition
}

// Resolve implements the command-string resolution order: split argv, try
// every tool's alias resolver in registration order, then fall back to
// gluing argv tokens together with "__" until a registered name matches.
func (r *Registry) Resolve(command string) (Resolved, error) {
	argv := splitArgv(command)
	if len(argv) == 0 {
		return Resolved{}, fmt.Errorf("toolcatalog: empty command")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		def := r.tools[name]
		if def.Alias == nil {
			continue
		}
		if aliasName, args, ok := def.Alias(argv); ok {
			resolved, exists := r.tools[aliasName]
			if !exists {
				continue
			}
			return Resolved{Name: aliasName, Args: args, Def: resolved}, nil
		}
	}

	for end := 1; end <= len(argv); end++ {
		name := strings.Join(argv[:end], "__")
		if def, ok := r.tools[name]; ok {
			return Resolved{
				Name:       name,
				Positional: argv[end:],
				Def:        def,
			}, nil
		}
	}

	return Resolved{}, fmt.Errorf("toolcatalog: command not found: %s", argv[0])
}

// splitArgv tokenizes command respecting single/double quotes, and
// preserves a trailing flow-style {...} or [...] argument as one token
// instead of splitting its internal whitespace.
func splitArgv(command string) []string {
	var argv []string
	var cur strings.Builder
	var quote rune
	var inFlow rune
	flowDepth := 0

	flush := func() {
		if cur.Len() > 0 {
			argv = append(argv, cur.String())
			cur.Reset()
		}
	}

	for _, r := range command {
		switch {
		case inFlow != 0:
			cur.WriteRune(r)
			switch r {
			case inFlow:
				flowDepth++
			case matchingClose(inFlow):
				flowDepth--
				if flowDepth == 0 {
					inFlow = 0
				}
			}
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
		case r == '{' || r == '[':
			if cur.Len() == 0 {
				inFlow = r
				flowDepth = 1
				cur.WriteRune(r)
			} else {
				cur.WriteRune(r)
			}
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return argv
}

func matchingClose(open rune) rune {
	switch open {
	case '{':
		return '}'
	case '[':
		return ']'
	}
	return 0
}
