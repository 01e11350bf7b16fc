package agentloop

import (
	"encoding/json"

	"github.com/daemonctl/daemonctl/internal/provider"
	"github.com/daemonctl/daemonctl/internal/toolcatalog"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// resolveAllowedTools intersects a session's template allowlist with the
// global catalog, drops anything human-only, and applies per-entry option
// overrides (currently just exec_on: host_danger, which upgrades a tool to
// host execution for this session regardless of its declared default).
func resolveAllowedTools(catalog *toolcatalog.Registry, allowlist []types.ToolAllowlistEntry) []toolcatalog.Definition {
	result := make([]toolcatalog.Definition, 0, len(allowlist))
	for _, entry := range allowlist {
		def, ok := catalog.Get(entry.Name)
		if !ok || def.HumanOnly {
			continue
		}
		if v, ok := entry.Options["exec_on"]; ok && v == "host_danger" {
			def.RequiresHostExecution = true
		}
		result = append(result, def)
	}
	return result
}

// toolInfos converts a resolved tool set into the provider-facing
// description offered to the model.
func toolInfos(defs []toolcatalog.Definition) []provider.ToolInfo {
	infos := make([]provider.ToolInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, provider.ToolInfo{
			Name:        def.Name,
			Description: def.Help,
			Parameters:  json.RawMessage(def.Parameters),
		})
	}
	return infos
}
