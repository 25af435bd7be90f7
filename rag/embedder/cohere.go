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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CohereConfig configures the Cohere embedder. Cohere has no official Go
// SDK, so this talks to its v2 embed API directly.
// See: https://docs.cohere.com/reference/embed
type CohereConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Dimension       int
	Timeout         time.Duration
	BatchSize       int
	InputType       string
	OutputDimension *int
	Truncate        string
}

// CohereEmbedder implements Embedder using Cohere's v2 embeddings API.
type CohereEmbedder struct {
	client    *http.Client
	apiKey    string
	baseURL   string
	model     string
	dimension int
	batchSize int
	inputType string
	outputDim *int
	truncate  string
}

type cohereRequest struct {
	Texts           []string `json:"texts,omitempty"`
	Model           string   `json:"model"`
	InputType       string   `json:"input_type"`
	OutputDimension *int     `json:"output_dimension,omitempty"`
	Truncate        string   `json:"truncate,omitempty"`
	EmbeddingTypes  []string `json:"embedding_types,omitempty"`
}

type cohereResponse struct {
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
}

type cohereErrorResponse struct {
	Message string `json:"message"`
}

// NewCohereEmbedder creates a new Cohere embedder.
func NewCohereEmbedder(cfg CohereConfig) (*CohereEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedder: cohere API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "embed-english-v3.0"
	}

	dimension := cfg.Dimension
	if dimension == 0 {
		switch model {
		case "embed-english-light-v3.0", "embed-multilingual-light-v3.0":
			dimension = 384
		case "embed-v4.0":
			dimension = 1536
		default:
			dimension = 1024
		}
	}
	if cfg.OutputDimension != nil {
		dimension = *cfg.OutputDimension
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.cohere.com"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 96
	}
	inputType := cfg.InputType
	if inputType == "" {
		inputType = "search_document"
	}
	truncate := cfg.Truncate
	if truncate == "" {
		truncate = "END"
	}

	return &CohereEmbedder{
		client:    &http.Client{Timeout: timeout},
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
		inputType: inputType,
		outputDim: cfg.OutputDimension,
		truncate:  truncate,
	}, nil
}

// Embed converts a single text to a vector embedding.
func (e *CohereEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedder: cohere returned no embeddings")
	}
	return embeddings[0], nil
}

// EmbedBatch converts multiple texts, chunked to Cohere's per-request limit.
func (e *CohereEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		embeddings, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		results = append(results, embeddings...)
	}

	return results, nil
}

func (e *CohereEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := cohereRequest{
		Texts:           texts,
		Model:           e.model,
		InputType:       e.inputType,
		OutputDimension: e.outputDim,
		Truncate:        e.truncate,
		EmbeddingTypes:  []string{"float"},
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal cohere request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v2/embed", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("embedder: build cohere request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedder: cohere request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: read cohere response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp cohereErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
			return nil, fmt.Errorf("embedder: cohere API error: %s", errResp.Message)
		}
		return nil, fmt.Errorf("embedder: cohere returned status %d: %s", resp.StatusCode, string(body))
	}

	var response cohereResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("embedder: decode cohere response: %w", err)
	}
	if len(response.Embeddings.Float) == 0 {
		return nil, fmt.Errorf("embedder: cohere returned empty embeddings")
	}

	return response.Embeddings.Float, nil
}

// Dimension returns the embedding vector dimension.
func (e *CohereEmbedder) Dimension() int { return e.dimension }

// Model returns the model name being used.
func (e *CohereEmbedder) Model() string { return e.model }

// Close releases any resources held by the embedder.
func (e *CohereEmbedder) Close() error { return nil }

var _ Embedder = (*CohereEmbedder)(nil)
