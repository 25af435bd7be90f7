package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentflowhq/agentflow/agent"
)

// AnthropicConfig configures an Anthropic-backed Client.
type AnthropicConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	ContextWindow     int
	ReserveCompletion int
	MaxTokens         int
}

// anthropicClient adapts anthropics/anthropic-sdk-go to the Client contract.
// It only translates message/tool shapes; retries and rate limiting are left
// to the caller per spec §4.1 ("rate limiting not retried inside client").
type anthropicClient struct {
	baseClient
	client    anthropic.Client
	maxTokens int
}

func NewAnthropicClient(cfg AnthropicConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: anthropic API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	contextWindow := cfg.ContextWindow
	if contextWindow == 0 {
		contextWindow = 200000
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &anthropicClient{
		baseClient: baseClient{model: model, contextWindow: contextWindow, reserveCompletion: cfg.ReserveCompletion},
		client:     anthropic.NewClient(opts...),
		maxTokens:  maxTokens,
	}, nil
}

func (c *anthropicClient) buildParams(conversation agent.Conversation, opts agent.CompletionOptions) (anthropic.MessageNewParams, error) {
	var system string
	var rest agent.Conversation
	for i, msg := range conversation {
		if i == 0 && msg.Role == agent.RoleSystem {
			system = msg.Content
			continue
		}
		rest = append(rest, msg)
	}

	messages, err := anthropicMessages(rest)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := int64(c.maxTokens)
	if opts.MaxTokens != nil {
		maxTokens = int64(*opts.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(opts.Temperature),
		TopP:        anthropic.Float(opts.TopP),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(opts.Tools) > 0 {
		tools, err := anthropicTools(opts.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	if opts.Reasoning != nil && *opts.Reasoning != agent.ReasoningNone {
		budget := int64(10000)
		if opts.BudgetTokens != nil {
			budget = int64(*opts.BudgetTokens)
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}
	return params, nil
}

func (c *anthropicClient) Complete(ctx context.Context, conversation agent.Conversation, opts agent.CompletionOptions) (agent.Completion, error) {
	params, err := c.buildParams(conversation, opts)
	if err != nil {
		return agent.Completion{}, ValidationError(err.Error(), err)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return agent.Completion{}, wrapAnthropicError(err)
	}

	var textBuf string
	var toolCalls []agent.ToolCall
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			textBuf += variant.Text
		case anthropic.ToolUseBlock:
			toolCalls = append(toolCalls, agent.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: json.RawMessage(variant.Input),
			})
		}
	}

	return agent.Completion{
		ID:        msg.ID,
		Content:   textBuf,
		Message:   agent.NewAssistantMessage(textBuf, toolCalls),
		ToolCalls: toolCalls,
		Usage: &agent.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

func (c *anthropicClient) StreamComplete(ctx context.Context, conversation agent.Conversation, opts agent.CompletionOptions, onChunk func(agent.StreamedChunk)) (agent.Completion, error) {
	if err := requireCallback(onChunk); err != nil {
		return agent.Completion{}, err
	}
	params, err := c.buildParams(conversation, opts)
	if err != nil {
		return agent.Completion{}, ValidationError(err.Error(), err)
	}

	stream := c.client.Messages.NewStreaming(ctx, params)

	var textBuf, toolInputBuf string
	var toolCalls []agent.ToolCall
	var current *agent.ToolCall
	var usage agent.Usage
	var msgID string

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			msgID = start.Message.ID
			usage.PromptTokens = int(start.Message.Usage.InputTokens)
		case "content_block_start":
			start := event.AsContentBlockStart()
			if tu, ok := start.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				current = &agent.ToolCall{ID: tu.ID, Name: tu.Name}
				toolInputBuf = ""
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			switch delta.Delta.Type {
			case "text_delta":
				if delta.Delta.Text != "" {
					textBuf += delta.Delta.Text
					onChunk(agent.StreamedChunk{ID: msgID, Content: delta.Delta.Text})
				}
			case "input_json_delta":
				toolInputBuf += delta.Delta.PartialJSON
			}
		case "content_block_stop":
			if current != nil {
				current.Arguments = json.RawMessage(toolInputBuf)
				toolCalls = append(toolCalls, *current)
				onChunk(agent.StreamedChunk{ID: msgID, ToolCall: current})
				current = nil
			}
		case "message_delta":
			d := event.AsMessageDelta()
			usage.CompletionTokens = int(d.Usage.OutputTokens)
		case "message_stop":
			onChunk(agent.StreamedChunk{ID: msgID, FinishReason: "stop"})
		}
	}
	if err := stream.Err(); err != nil {
		return agent.Completion{}, wrapAnthropicError(err)
	}

	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return agent.Completion{
		ID:        msgID,
		Content:   textBuf,
		Message:   agent.NewAssistantMessage(textBuf, toolCalls),
		ToolCalls: toolCalls,
		Usage:     &usage,
	}, nil
}

func anthropicMessages(conversation agent.Conversation) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range conversation {
		var blocks []anthropic.ContentBlockParamUnion
		switch msg.Role {
		case agent.RoleTool:
			blocks = append(blocks, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
			result = append(result, anthropic.NewUserMessage(blocks...))
			continue
		case agent.RoleAssistant:
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input map[string]any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						return nil, fmt.Errorf("llm: decode tool call arguments for %q: %w", tc.Name, err)
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		default:
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}
	return result, nil
}

func anthropicTools(tools []agent.ToolDefinitionSpec) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(t.Schema) > 0 {
			if err := json.Unmarshal(t.Schema, &schema); err != nil {
				return nil, fmt.Errorf("llm: invalid schema for tool %q: %w", t.Name, err)
			}
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(t.Description)
		}
		result = append(result, param)
	}
	return result, nil
}

func wrapAnthropicError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return AuthError(apiErr.Error(), err)
		case 429:
			return RateLimitError(apiErr.Error(), err)
		case 400, 422:
			return ValidationError(apiErr.Error(), err)
		default:
			if apiErr.StatusCode >= 500 {
				return ServiceError(apiErr.StatusCode, apiErr.Error(), err)
			}
			return ServiceError(apiErr.StatusCode, apiErr.Error(), err)
		}
	}
	return NetworkError(err.Error(), err)
}
