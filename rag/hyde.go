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

package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentflowhq/agentflow/agent"
	"github.com/agentflowhq/agentflow/llm"
)

// HyDE implements Hypothetical Document Embeddings: instead of embedding the
// query directly, it asks an LLM to write a hypothetical answer and embeds
// that instead, per spec §4.9's optional query-expansion stage. It is
// additive and only runs when hybrid search is configured to use it.
//
// Paper: "Precise Zero-Shot Dense Retrieval without Relevance Labels"
// https://arxiv.org/abs/2212.10496
//
// Derived from legacy pkg/context/hyde.go
type HyDE struct {
	client llm.Client
}

// NewHyDE creates a new HyDE processor.
func NewHyDE(client llm.Client) *HyDE {
	return &HyDE{client: client}
}

// GenerateHypotheticalDocument generates a hypothetical document for the query.
func (h *HyDE) GenerateHypotheticalDocument(ctx context.Context, query string) (string, error) {
	if h.client == nil {
		return "", fmt.Errorf("rag: HyDE requires an LLM client")
	}

	sanitizedQuery := sanitizeInput(query)

	prompt := fmt.Sprintf(`Write a concise, hypothetical document that would be highly relevant to answer the following query: "%s"

The document should:
- Be brief (1-2 paragraphs)
- Directly address the core of the query
- Sound like a real document excerpt
- Not mention that it's hypothetical

Document:`, sanitizedQuery)

	conversation := agent.Conversation{agent.NewUserMessage(prompt)}
	completion, err := h.client.Complete(ctx, conversation, agent.CompletionOptions{
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("rag: generating hypothetical document: %w", err)
	}

	result := completion.Message.Content
	if result == "" {
		return "", fmt.Errorf("rag: LLM returned empty hypothetical document")
	}

	slog.Debug("generated hypothetical document", "query", query, "hypothetical_length", len(result))
	return result, nil
}
