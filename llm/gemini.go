package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/agentflowhq/agentflow/agent"
)

// GeminiConfig configures a Gemini-backed Client, grounded on the teacher's
// pkg/model/gemini adapter but retargeted at the flat agent.Conversation
// wire shape instead of a2a.Message.
type GeminiConfig struct {
	APIKey            string
	Model             string
	ContextWindow     int
	ReserveCompletion int
}

type geminiClient struct {
	baseClient
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	contextWindow := cfg.ContextWindow
	if contextWindow == 0 {
		contextWindow = 1000000
	}
	return &geminiClient{
		baseClient: baseClient{model: model, contextWindow: contextWindow, reserveCompletion: cfg.ReserveCompletion},
		client:     client,
	}, nil
}

func (c *geminiClient) buildRequest(conversation agent.Conversation, opts agent.CompletionOptions) ([]*genai.Content, *genai.GenerateContentConfig) {
	var contents []*genai.Content
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
		TopP:        genai.Ptr(float32(opts.TopP)),
	}
	if opts.MaxTokens != nil {
		config.MaxOutputTokens = int32(*opts.MaxTokens)
	}

	for i, msg := range conversation {
		if i == 0 && msg.Role == agent.RoleSystem {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
			continue
		}
		if content := geminiContent(msg); content != nil {
			contents = append(contents, content)
		}
	}

	if len(opts.Tools) > 0 {
		var decls []*genai.FunctionDeclaration
		for _, t := range opts.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  jsonSchemaToGenai(t.Schema),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	if opts.Reasoning != nil && *opts.Reasoning != agent.ReasoningNone {
		thinking := &genai.ThinkingConfig{IncludeThoughts: true}
		if opts.BudgetTokens != nil {
			budget := int32(*opts.BudgetTokens)
			thinking.ThinkingBudget = &budget
		}
		config.ThinkingConfig = thinking
	}

	return contents, config
}

func geminiContent(msg agent.Message) *genai.Content {
	role := "user"
	var parts []*genai.Part
	switch msg.Role {
	case agent.RoleAssistant:
		role = "model"
		if msg.Content != "" {
			parts = append(parts, &genai.Part{Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			var args map[string]any
			if len(tc.Arguments) > 0 {
				_ = json.Unmarshal(tc.Arguments, &args)
			}
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
		}
	case agent.RoleTool:
		parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       msg.ToolCallID,
			Response: map[string]any{"result": msg.Content},
		}})
	default:
		if msg.Content != "" {
			parts = append(parts, &genai.Part{Text: msg.Content})
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return &genai.Content{Parts: parts, Role: role}
}

func jsonSchemaToGenai(raw json.RawMessage) *genai.Schema {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return schemaFromMap(m)
}

func schemaFromMap(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = schemaFromMap(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = schemaFromMap(items)
	}
	return s
}

func (c *geminiClient) Complete(ctx context.Context, conversation agent.Conversation, opts agent.CompletionOptions) (agent.Completion, error) {
	contents, config := c.buildRequest(conversation, opts)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return agent.Completion{}, wrapGeminiError(err)
	}
	return parseGeminiResponse(resp)
}

func (c *geminiClient) StreamComplete(ctx context.Context, conversation agent.Conversation, opts agent.CompletionOptions, onChunk func(agent.StreamedChunk)) (agent.Completion, error) {
	if err := requireCallback(onChunk); err != nil {
		return agent.Completion{}, err
	}
	contents, config := c.buildRequest(conversation, opts)

	var textBuf string
	var toolCalls []agent.ToolCall
	var usage *agent.Usage

	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, config) {
		if err != nil {
			return agent.Completion{}, wrapGeminiError(err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" && !part.Thought {
				textBuf += part.Text
				onChunk(agent.StreamedChunk{Content: part.Text})
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				tc := agent.ToolCall{ID: part.FunctionCall.ID, Name: part.FunctionCall.Name, Arguments: args}
				toolCalls = append(toolCalls, tc)
				onChunk(agent.StreamedChunk{ToolCall: &tc})
			}
		}
		if resp.UsageMetadata != nil {
			usage = &agent.Usage{
				PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
			}
		}
	}
	onChunk(agent.StreamedChunk{FinishReason: "stop"})

	return agent.Completion{
		Content:   textBuf,
		Message:   agent.NewAssistantMessage(textBuf, toolCalls),
		ToolCalls: toolCalls,
		Usage:     usage,
	}, nil
}

func parseGeminiResponse(resp *genai.GenerateContentResponse) (agent.Completion, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return agent.Completion{}, LLMError("gemini: empty response", nil)
	}
	var textBuf string
	var toolCalls []agent.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			textBuf += part.Text
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			toolCalls = append(toolCalls, agent.ToolCall{ID: part.FunctionCall.ID, Name: part.FunctionCall.Name, Arguments: args})
		}
	}
	var usage *agent.Usage
	if resp.UsageMetadata != nil {
		usage = &agent.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return agent.Completion{
		Content:   textBuf,
		Message:   agent.NewAssistantMessage(textBuf, toolCalls),
		ToolCalls: toolCalls,
		Usage:     usage,
	}, nil
}

func wrapGeminiError(err error) error {
	if err == nil {
		return nil
	}
	return LLMError(err.Error(), err)
}
