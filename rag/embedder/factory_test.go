package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToOpenAIWhenProviderEmpty(t *testing.T) {
	e, err := New(Config{Provider: "", APIKey: "sk-test"})
	require.NoError(t, err)
	_, ok := e.(*OpenAIEmbedder)
	assert.True(t, ok)
}

func TestNew_ResolvesAPIKeyFromEnvWhenAPIKeyEmpty(t *testing.T) {
	t.Setenv("TEST_EMBEDDER_KEY", "sk-from-env")
	e, err := New(Config{Provider: "openai", APIKeyEnv: "TEST_EMBEDDER_KEY"})
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestNew_OllamaRequiresNoAPIKey(t *testing.T) {
	e, err := New(Config{Provider: "ollama"})
	require.NoError(t, err)
	_, ok := e.(*OllamaEmbedder)
	assert.True(t, ok)
}

func TestNew_CohereRequiresAPIKey(t *testing.T) {
	_, err := New(Config{Provider: "cohere"})
	assert.Error(t, err)

	e, err := New(Config{Provider: "cohere", APIKey: "co-test"})
	require.NoError(t, err)
	_, ok := e.(*CohereEmbedder)
	assert.True(t, ok)
}

func TestNew_UnsupportedProviderErrors(t *testing.T) {
	_, err := New(Config{Provider: "nonexistent"})
	assert.Error(t, err)
}

func TestNewOpenAIEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{})
	assert.Error(t, err)
}

func TestNewOpenAIEmbedder_DefaultsModelAndDimension(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, 1536, e.Dimension())
	assert.NotEmpty(t, e.Model())
}

func TestNewOpenAIEmbedder_LargeModelDefaultsTo3072Dimensions(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, e.Dimension())
}

func TestNewOpenAIEmbedder_ExplicitDimensionOverridesDefault(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", Dimension: 256})
	require.NoError(t, err)
	assert.Equal(t, 256, e.Dimension())
}

func TestNewOllamaEmbedder_DefaultsModelBaseURLAndDimension(t *testing.T) {
	e, err := NewOllamaEmbedder(OllamaConfig{})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", e.model)
	assert.Equal(t, "http://localhost:11434", e.baseURL)
	assert.Equal(t, 768, e.dimension)
}

func TestNewOllamaEmbedder_KnownModelDimensions(t *testing.T) {
	e, err := NewOllamaEmbedder(OllamaConfig{Model: "bge-large-en-v1.5"})
	require.NoError(t, err)
	assert.Equal(t, 1024, e.dimension)

	e, err = NewOllamaEmbedder(OllamaConfig{Model: "all-minilm:l6-v2"})
	require.NoError(t, err)
	assert.Equal(t, 384, e.dimension)
}

func TestNewCohereEmbedder_RequiresAPIKey(t *testing.T) {
	_, err := NewCohereEmbedder(CohereConfig{})
	assert.Error(t, err)
}

func TestNewCohereEmbedder_DefaultsModelAndDimension(t *testing.T) {
	e, err := NewCohereEmbedder(CohereConfig{APIKey: "co-test"})
	require.NoError(t, err)
	assert.Equal(t, "embed-english-v3.0", e.model)
	assert.Equal(t, 1024, e.dimension)
}

func TestNewCohereEmbedder_LightModelDefaultsTo384Dimensions(t *testing.T) {
	e, err := NewCohereEmbedder(CohereConfig{APIKey: "co-test", Model: "embed-english-light-v3.0"})
	require.NoError(t, err)
	assert.Equal(t, 384, e.dimension)
}

func TestNewCohereEmbedder_OutputDimensionOverridesModelDefault(t *testing.T) {
	dim := 42
	e, err := NewCohereEmbedder(CohereConfig{APIKey: "co-test", OutputDimension: &dim})
	require.NoError(t, err)
	assert.Equal(t, 42, e.dimension)
}
