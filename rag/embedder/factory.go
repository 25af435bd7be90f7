// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedder

import (
	"fmt"
	"os"
)

// Config selects and configures one of the supported embedder providers.
type Config struct {
	Provider  string // "openai" | "ollama" | "cohere"
	APIKey    string
	APIKeyEnv string
	BaseURL   string
	Model     string
	Dimension int
}

// New builds an Embedder for the given provider, resolving APIKeyEnv when
// APIKey is empty.
func New(cfg Config) (Embedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" && cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:    apiKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
		})

	case "ollama":
		return NewOllamaEmbedder(OllamaConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
		})

	case "cohere":
		return NewCohereEmbedder(CohereConfig{
			APIKey:    apiKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
		})

	default:
		return nil, fmt.Errorf("embedder: unsupported provider %q (supported: openai, ollama, cohere)", cfg.Provider)
	}
}
