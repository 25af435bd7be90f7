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
	"sort"
	"strings"

	"github.com/agentflowhq/agentflow/agent"
	"github.com/agentflowhq/agentflow/llm"
)

// MultiQueryExpander generates multiple query variants for better recall:
// alternative phrasings are searched independently and the result sets
// merged, which helps when relevant documents use different terminology
// than the user's query. Off by default; a caller opts in per search.
//
// Derived from legacy pkg/context/multi_query.go
type MultiQueryExpander struct {
	client     llm.Client
	numQueries int
}

// NewMultiQueryExpander creates a new multi-query expander.
func NewMultiQueryExpander(client llm.Client, numQueries int) *MultiQueryExpander {
	if numQueries <= 0 {
		numQueries = 3
	}
	return &MultiQueryExpander{client: client, numQueries: numQueries}
}

// ExpandQuery generates multiple query variants, always including the
// original query first.
func (m *MultiQueryExpander) ExpandQuery(ctx context.Context, query string) ([]string, error) {
	if m.client == nil {
		return []string{query}, fmt.Errorf("rag: multi-query expansion requires an LLM client")
	}

	sanitizedQuery := sanitizeInput(query)

	prompt := fmt.Sprintf(`Generate %d alternative versions of the following search query.
Each alternative should:
- Search for the same information but with different wording
- Use synonyms or related terms
- Rephrase the question from different angles

Original query: "%s"

Respond with only the alternative queries, one per line, without numbering or bullets.`, m.numQueries, sanitizedQuery)

	conversation := agent.Conversation{agent.NewUserMessage(prompt)}
	completion, err := m.client.Complete(ctx, conversation, agent.CompletionOptions{Temperature: 0.7})
	if err != nil {
		slog.Warn("multi-query expansion failed", "error", err)
		return []string{query}, nil
	}

	queries := m.parseQueries(completion.Message.Content, query)
	slog.Debug("expanded query", "original", query, "variants", len(queries))
	return queries, nil
}

// parseQueries extracts query variants from the LLM response.
func (m *MultiQueryExpander) parseQueries(response, original string) []string {
	queries := []string{original}
	seen := map[string]bool{strings.ToLower(original): true}

	lines := strings.Split(response, "\n")
	for _, line := range lines {
		query := strings.TrimSpace(line)

		for _, prefix := range []string{"-", "•", "*", "1.", "2.", "3.", "4.", "5."} {
			query = strings.TrimPrefix(query, prefix)
		}
		query = strings.TrimSpace(query)
		query = strings.Trim(query, `"'`)

		if query == "" || seen[strings.ToLower(query)] {
			continue
		}

		queries = append(queries, query)
		seen[strings.ToLower(query)] = true

		if len(queries) >= m.numQueries+1 {
			break
		}
	}

	return queries
}

// CombineResults merges results from multiple queries, deduplicating by
// document id and keeping the highest score for each.
func CombineResults(resultSets [][]SearchResult) []SearchResult {
	if len(resultSets) == 0 {
		return nil
	}

	bestScores := make(map[string]SearchResult)
	for _, results := range resultSets {
		for _, result := range results {
			if existing, ok := bestScores[result.ID]; !ok || result.Score > existing.Score {
				bestScores[result.ID] = result
			}
		}
	}

	combined := make([]SearchResult, 0, len(bestScores))
	for _, result := range bestScores {
		combined = append(combined, result)
	}
	sort.Slice(combined, func(i, j int) bool { return combined[i].Score > combined[j].Score })

	return combined
}

// NilMultiQueryExpander returns the original query unchanged.
type NilMultiQueryExpander struct{}

func (NilMultiQueryExpander) ExpandQuery(ctx context.Context, query string) ([]string, error) {
	return []string{query}, nil
}
