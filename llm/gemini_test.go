package llm

import (
	"context"
	"encoding/json"
	"testing"

	"google.golang.org/genai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflowhq/agentflow/agent"
)

func TestNewGeminiClient_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{})
	assert.Error(t, err)
	assert.ErrorContains(t, err, "API key")
}

func TestGeminiContent_UserMessageProducesTextPart(t *testing.T) {
	content := geminiContent(agent.Message{Role: agent.RoleUser, Content: "hello"})
	require.NotNil(t, content)
	assert.Equal(t, "user", content.Role)
	require.Len(t, content.Parts, 1)
	assert.Equal(t, "hello", content.Parts[0].Text)
}

func TestGeminiContent_AssistantWithToolCallProducesFunctionCallPart(t *testing.T) {
	content := geminiContent(agent.Message{
		Role: agent.RoleAssistant,
		ToolCalls: []agent.ToolCall{
			{ID: "call-1", Name: "search", Arguments: json.RawMessage(`{"q":"cats"}`)},
		},
	})
	require.NotNil(t, content)
	assert.Equal(t, "model", content.Role)
	require.Len(t, content.Parts, 1)
	require.NotNil(t, content.Parts[0].FunctionCall)
	assert.Equal(t, "search", content.Parts[0].FunctionCall.Name)
}

func TestGeminiContent_ToolMessageProducesFunctionResponsePart(t *testing.T) {
	content := geminiContent(agent.Message{Role: agent.RoleTool, Content: "42", ToolCallID: "call-1"})
	require.NotNil(t, content)
	require.Len(t, content.Parts, 1)
	require.NotNil(t, content.Parts[0].FunctionResponse)
	assert.Equal(t, "call-1", content.Parts[0].FunctionResponse.ID)
}

func TestGeminiContent_EmptyAssistantMessageReturnsNil(t *testing.T) {
	content := geminiContent(agent.Message{Role: agent.RoleAssistant})
	assert.Nil(t, content)
}

func TestJSONSchemaToGenai_EmptyRawReturnsNil(t *testing.T) {
	assert.Nil(t, jsonSchemaToGenai(nil))
}

func TestJSONSchemaToGenai_ConvertsObjectSchemaWithNestedProperties(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"description": "a query",
		"required": ["q"],
		"properties": {
			"q": {"type": "string", "description": "the query"}
		}
	}`)
	schema := jsonSchemaToGenai(raw)
	require.NotNil(t, schema)
	assert.Equal(t, genai.Type("object"), schema.Type)
	assert.Equal(t, "a query", schema.Description)
	assert.Equal(t, []string{"q"}, schema.Required)
	require.Contains(t, schema.Properties, "q")
	assert.Equal(t, genai.Type("string"), schema.Properties["q"].Type)
}

func TestSchemaFromMap_NilMapReturnsNil(t *testing.T) {
	assert.Nil(t, schemaFromMap(nil))
}

func TestSchemaFromMap_ConvertsArrayItemsSchema(t *testing.T) {
	schema := schemaFromMap(map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "number"},
	})
	require.NotNil(t, schema)
	require.NotNil(t, schema.Items)
	assert.Equal(t, genai.Type("number"), schema.Items.Type)
}

func TestParseGeminiResponse_EmptyCandidatesErrors(t *testing.T) {
	_, err := parseGeminiResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)
}

func TestParseGeminiResponse_ExtractsTextAndToolCalls(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "the answer is"},
				{FunctionCall: &genai.FunctionCall{ID: "call-1", Name: "search", Args: map[string]any{"q": "cats"}}},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 5,
			TotalTokenCount:      15,
		},
	}
	completion, err := parseGeminiResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "the answer is", completion.Content)
	require.Len(t, completion.ToolCalls, 1)
	assert.Equal(t, "search", completion.ToolCalls[0].Name)
	require.NotNil(t, completion.Usage)
	assert.Equal(t, 15, completion.Usage.TotalTokens)
}

func TestParseGeminiResponse_SkipsThoughtParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "internal reasoning", Thought: true},
				{Text: "final answer"},
			}},
		}},
	}
	completion, err := parseGeminiResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "final answer", completion.Content)
}

func TestWrapGeminiError_NilReturnsNil(t *testing.T) {
	assert.NoError(t, wrapGeminiError(nil))
}

func TestWrapGeminiError_WrapsAnyErrorAsLLMError(t *testing.T) {
	err := wrapGeminiError(assert.AnError)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, string(KindLLM), e.Kind())
}
