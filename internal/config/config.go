package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/daemonctl/daemonctl/pkg/types"
)

// Load loads configuration from multiple sources, in priority order:
//  1. built-in defaults
//  2. the global config file ($XDG_DATA_HOME/daemonctl/config.yml)
//  3. a project-local override (<projectDir>/.daemonctl/config.yml)
//  4. the global .env file, then environment variables directly
//
// Later sources win. Missing files are skipped, not an error.
func Load(paths *Paths, projectDir string) (*types.Config, error) {
	cfg := defaults()

	if err := loadFile(paths.ConfigFile(), cfg); err != nil {
		return nil, err
	}

	if projectDir != "" {
		if err := loadFile(projectOverridePath(projectDir), cfg); err != nil {
			return nil, err
		}
	}

	loadEnvFile(paths.EnvFile())
	applyEnvOverrides(cfg)

	return cfg, nil
}

func defaults() *types.Config {
	return &types.Config{
		Provider:      make(map[string]types.ProviderConfig),
		MCP:           make(map[string]types.MCPConfig),
		TickInterval:  2_000_000_000, // 2s, in time.Duration nanoseconds
		BridgeTimeout: 5_000_000_000, // 5s
		LogLevel:      "info",
	}
}

func projectOverridePath(projectDir string) string {
	return projectDir + "/.daemonctl/config.yml"
}

func loadFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var overlay types.Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	merge(cfg, &overlay)
	return nil
}

// merge layers source onto target. Zero-valued fields in source leave
// target untouched.
func merge(target, source *types.Config) {
	if source.AllowlistPath != "" {
		target.AllowlistPath = source.AllowlistPath
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.TickInterval != 0 {
		target.TickInterval = source.TickInterval
	}
	if source.BridgeTimeout != 0 {
		target.BridgeTimeout = source.BridgeTimeout
	}
	// Booleans are merged as "enable only": a decoded YAML document cannot
	// tell an omitted key from an explicit false, so the zero value is
	// treated as "not set". A source's true turns the flag on; its false
	// leaves the value merged so far, so an override cannot switch off a
	// flag an earlier source enabled.
	if source.Unattended {
		target.Unattended = true
	}
	if source.DoomLoopDetection {
		target.DoomLoopDetection = true
	}
	if source.Compaction.Enabled {
		target.Compaction = source.Compaction
	}
	if source.WebSearch.CX != "" {
		target.WebSearch.CX = source.WebSearch.CX
	}
	if source.WebSearch.APIKey != "" {
		target.WebSearch.APIKey = source.WebSearch.APIKey
	}

	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}
	if source.MCP != nil {
		if target.MCP == nil {
			target.MCP = make(map[string]types.MCPConfig)
		}
		for k, v := range source.MCP {
			target.MCP[k] = v
		}
	}
}

func loadEnvFile(path string) {
	_ = godotenv.Load(path) // missing .env is not an error
}

// applyEnvOverrides applies deployment environment variables on top of the
// file-based sources. DAEMONCTL_LOG_LEVEL, GOOGLE_CX and GOOGLE_API_KEY
// always win; a provider API key variable only fills in a key that no
// config file set.
func applyEnvOverrides(cfg *types.Config) {
	providerEnvVar := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"bedrock":   "AWS_ACCESS_KEY_ID",
	}

	for provider, envVar := range providerEnvVar {
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			continue
		}
		if cfg.Provider == nil {
			cfg.Provider = make(map[string]types.ProviderConfig)
		}
		p := cfg.Provider[provider]
		if p.APIKey == "" {
			p.APIKey = apiKey
			cfg.Provider[provider] = p
		}
	}

	if level := os.Getenv("DAEMONCTL_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if cx := os.Getenv("GOOGLE_CX"); cx != "" {
		cfg.WebSearch.CX = cx
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		cfg.WebSearch.APIKey = key
	}
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(cfg *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
