package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These providers are thin wrappers over external Eino model adapters; per
// the project's stance on out-of-core collaborators, they're tested only for
// their contract shape (ID/Name/error-on-missing-credentials), not against a
// live or mocked completion endpoint.

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropicProvider(context.Background(), &AnthropicConfig{})
	assert.Error(t, err)
}

func TestNewAnthropicProviderID(t *testing.T) {
	p, err := NewAnthropicProvider(context.Background(), &AnthropicConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.ID())
	assert.Equal(t, "Anthropic", p.Name())
	assert.NotEmpty(t, p.Models())

	named, err := NewAnthropicProvider(context.Background(), &AnthropicConfig{ID: "claude", APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "claude", named.ID())
}

func TestNewOpenAIProviderRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIProvider(context.Background(), &OpenAIConfig{})
	assert.Error(t, err)
}

func TestNewOpenAIProviderID(t *testing.T) {
	p, err := NewOpenAIProvider(context.Background(), &OpenAIConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.ID())
	assert.Equal(t, "OpenAI", p.Name())
	assert.NotEmpty(t, p.Models())
}

func TestNewArkProviderRequiresAPIKey(t *testing.T) {
	t.Setenv("ARK_API_KEY", "")
	_, err := NewArkProvider(context.Background(), &ArkConfig{})
	assert.Error(t, err)
}

func TestNewArkProviderID(t *testing.T) {
	p, err := NewArkProvider(context.Background(), &ArkConfig{APIKey: "test-key", Model: "ep-test"})
	require.NoError(t, err)
	assert.Equal(t, "ark", p.ID())
	assert.Equal(t, "ARK", p.Name())
}
