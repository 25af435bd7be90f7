package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentflowhq/agentflow/agent"
)

// OpenAIConfig configures an OpenAI-backed Client.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	ContextWindow     int
	ReserveCompletion int
}

type openaiClient struct {
	baseClient
	client *openai.Client
}

func NewOpenAIClient(cfg OpenAIConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: openai API key is required")
	}
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	contextWindow := cfg.ContextWindow
	if contextWindow == 0 {
		contextWindow = 128000
	}
	return &openaiClient{
		baseClient: baseClient{model: model, contextWindow: contextWindow, reserveCompletion: cfg.ReserveCompletion},
		client:     openai.NewClientWithConfig(oaiCfg),
	}, nil
}

func (c *openaiClient) buildRequest(conversation agent.Conversation, opts agent.CompletionOptions, stream bool) (openai.ChatCompletionRequest, error) {
	messages, err := openaiMessages(conversation)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	req := openai.ChatCompletionRequest{
		Model:            c.model,
		Messages:         messages,
		Temperature:      float32(opts.Temperature),
		TopP:             float32(opts.TopP),
		PresencePenalty:  float32(opts.PresencePenalty),
		FrequencyPenalty: float32(opts.FrequencyPenalty),
		Stream:           stream,
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	if len(opts.Tools) > 0 {
		req.Tools = openaiTools(opts.Tools)
	}
	return req, nil
}

func (c *openaiClient) Complete(ctx context.Context, conversation agent.Conversation, opts agent.CompletionOptions) (agent.Completion, error) {
	req, err := c.buildRequest(conversation, opts, false)
	if err != nil {
		return agent.Completion{}, ValidationError(err.Error(), err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return agent.Completion{}, wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return agent.Completion{}, LLMError("openai: empty choices in response", nil)
	}

	choice := resp.Choices[0].Message
	toolCalls := make([]agent.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		toolCalls = append(toolCalls, agent.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	return agent.Completion{
		ID:        resp.ID,
		Created:   resp.Created,
		Content:   choice.Content,
		Message:   agent.NewAssistantMessage(choice.Content, toolCalls),
		ToolCalls: toolCalls,
		Usage: &agent.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *openaiClient) StreamComplete(ctx context.Context, conversation agent.Conversation, opts agent.CompletionOptions, onChunk func(agent.StreamedChunk)) (agent.Completion, error) {
	if err := requireCallback(onChunk); err != nil {
		return agent.Completion{}, err
	}
	req, err := c.buildRequest(conversation, opts, true)
	if err != nil {
		return agent.Completion{}, ValidationError(err.Error(), err)
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return agent.Completion{}, wrapOpenAIError(err)
	}
	defer stream.Close()

	var id string
	var created int64
	var textBuf string
	toolCallBuf := map[int]*agent.ToolCall{}
	var order []int

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return agent.Completion{}, wrapOpenAIError(err)
		}
		if id == "" {
			id = resp.ID
			created = resp.Created
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		if choice.Delta.Content != "" {
			textBuf += choice.Delta.Content
			onChunk(agent.StreamedChunk{ID: id, Content: choice.Delta.Content})
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := toolCallBuf[idx]
			if !ok {
				call = &agent.ToolCall{}
				toolCallBuf[idx] = call
				order = append(order, idx)
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				call.Arguments = append(call.Arguments, []byte(tc.Function.Arguments)...)
			}
		}
		if choice.FinishReason != "" {
			onChunk(agent.StreamedChunk{ID: id, FinishReason: string(choice.FinishReason)})
		}
	}

	toolCalls := make([]agent.ToolCall, 0, len(order))
	for _, idx := range order {
		toolCalls = append(toolCalls, *toolCallBuf[idx])
	}

	return agent.Completion{
		ID:        id,
		Created:   created,
		Content:   textBuf,
		Message:   agent.NewAssistantMessage(textBuf, toolCalls),
		ToolCalls: toolCalls,
	}, nil
}

func openaiMessages(conversation agent.Conversation) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(conversation))
	for _, msg := range conversation {
		switch msg.Role {
		case agent.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		case agent.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			result = append(result, oaiMsg)
		case agent.RoleSystem:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})
		default:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		}
	}
	return result, nil
}

func openaiTools(tools []agent.ToolDefinitionSpec) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params any
		if len(t.Schema) > 0 {
			_ = json.Unmarshal(t.Schema, &params)
		}
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return result
}

func wrapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return AuthError(apiErr.Message, err)
		case http.StatusTooManyRequests:
			return RateLimitError(apiErr.Message, err)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return ValidationError(apiErr.Message, err)
		default:
			return ServiceError(apiErr.HTTPStatusCode, apiErr.Message, err)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NetworkError(reqErr.Error(), err)
	}
	return LLMError(err.Error(), err)
}
