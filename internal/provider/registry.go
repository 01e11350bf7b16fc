package provider

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/daemonctl/daemonctl/internal/logging"
	"github.com/daemonctl/daemonctl/pkg/types"
)

// Registry manages all available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	config    *types.Config
}

// NewRegistry creates a new provider registry.
func NewRegistry(config *types.Config) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		config:    config,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns all available providers.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// GetModel retrieves a specific model from a provider.
func (r *Registry) GetModel(providerID, modelID string) (*types.Model, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	for _, model := range provider.Models() {
		if model.ModelID == modelID {
			return &model, nil
		}
	}

	return nil, fmt.Errorf("model not found: %s:%s", providerID, modelID)
}

// AllModels returns all models from all providers.
func (r *Registry) AllModels() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var models []types.Model
	for _, p := range r.providers {
		models = append(models, p.Models()...)
	}

	// Sort by quality/priority
	sort.Slice(models, func(i, j int) bool {
		return modelPriority(models[i].ModelID) > modelPriority(models[j].ModelID)
	})

	return models
}

// DefaultModel returns the default model for a session whose types.Session.Model
// field was left blank at creation time.
func (r *Registry) DefaultModel() (*types.Model, error) {
	// Default to Claude Sonnet if available
	model, err := r.GetModel("anthropic", "claude-sonnet-4-20250514")
	if err == nil {
		return model, nil
	}

	// Fall back to first available model
	models := r.AllModels()
	if len(models) == 0 {
		return nil, fmt.Errorf("no models available")
	}
	return &models[0], nil
}

// ParseModelString parses the "<provider>:<model>" identifier syntax a
// session's Model field carries.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// modelPriority returns sorting priority for models.
func modelPriority(modelID string) int {
	switch {
	case strings.Contains(modelID, "gpt-5"):
		return 100
	case strings.Contains(modelID, "claude-sonnet-4"):
		return 90
	case strings.Contains(modelID, "claude-opus"):
		return 85
	case strings.Contains(modelID, "gpt-4o"):
		return 80
	case strings.Contains(modelID, "claude-3-5"):
		return 75
	case strings.Contains(modelID, "gemini-2"):
		return 70
	default:
		return 50
	}
}

// InitializeProviders creates and registers all providers named in
// config.yml's `provider:` map, then auto-registers anthropic/openai from
// environment variables for any of those two not already configured.
func InitializeProviders(ctx context.Context, config *types.Config) (*Registry, error) {
	registry := NewRegistry(config)

	configuredProviders := make(map[string]bool)

	for name, cfg := range config.Provider {
		configuredProviders[name] = true

		var provider Provider
		var err error

		switch name {
		case "anthropic", "claude":
			if cfg.APIKey != "" {
				provider, err = NewAnthropicProvider(ctx, &AnthropicConfig{
					ID:        name,
					APIKey:    cfg.APIKey,
					BaseURL:   cfg.BaseURL,
					MaxTokens: 8192,
				})
			}

		case "openai":
			if cfg.APIKey != "" || cfg.BaseURL != "" {
				// An OpenAI-compatible endpoint may not require an API key.
				provider, err = NewOpenAIProvider(ctx, &OpenAIConfig{
					ID:        name,
					APIKey:    cfg.APIKey,
					BaseURL:   cfg.BaseURL,
					MaxTokens: 4096,
				})
			}

		case "ark":
			if cfg.APIKey != "" {
				provider, err = NewArkProvider(ctx, &ArkConfig{
					APIKey:    cfg.APIKey,
					BaseURL:   cfg.BaseURL,
					MaxTokens: 4096,
				})
			}
		}

		if err != nil {
			logging.Warn().Str("provider", name).Err(err).Msg("provider: failed to initialize")
			continue
		}
		if provider != nil {
			registry.Register(provider)
		}
	}

	if !configuredProviders["anthropic"] {
		if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
			provider, err := NewAnthropicProvider(ctx, &AnthropicConfig{
				ID:        "anthropic",
				APIKey:    apiKey,
				MaxTokens: 8192,
			})
			if err != nil {
				logging.Warn().Err(err).Msg("provider: failed to auto-register anthropic from ANTHROPIC_API_KEY")
			} else if provider != nil {
				registry.Register(provider)
			}
		}
	}

	if !configuredProviders["openai"] {
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			provider, err := NewOpenAIProvider(ctx, &OpenAIConfig{
				ID:        "openai",
				APIKey:    apiKey,
				MaxTokens: 4096,
			})
			if err == nil && provider != nil {
				registry.Register(provider)
			}
		}
	}

	return registry, nil
}
