package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentflowhq/agentflow/agent"
)

// OllamaConfig configures a hand-rolled Ollama client. Ollama has no
// first-party Go SDK in the pack, so this adapter talks its /api/chat JSON
// lines protocol directly over net/http, the way the teacher's Ollama
// provider does.
type OllamaConfig struct {
	BaseURL           string
	Model             string
	ContextWindow     int
	ReserveCompletion int
	Timeout           time.Duration
}

type ollamaClient struct {
	baseClient
	httpClient *http.Client
	baseURL    string
}

func NewOllamaClient(cfg OllamaConfig) Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	contextWindow := cfg.ContextWindow
	if contextWindow == 0 {
		contextWindow = 8192
	}
	return &ollamaClient{
		baseClient: baseClient{model: model, contextWindow: contextWindow, reserveCompletion: cfg.ReserveCompletion},
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Tools    []ollamaTool        `json:"tools,omitempty"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolCall struct {
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
}

type ollamaChatResponse struct {
	Message         *ollamaChatMessage `json:"message"`
	Done            bool               `json:"done"`
	Error           string             `json:"error"`
	EvalCount       int                `json:"eval_count"`
	PromptEvalCount int                `json:"prompt_eval_count"`
}

func (c *ollamaClient) buildRequest(conversation agent.Conversation, opts agent.CompletionOptions, stream bool) ollamaChatRequest {
	req := ollamaChatRequest{Model: c.model, Stream: stream}
	toolNames := map[string]string{}
	for _, msg := range conversation {
		for _, tc := range msg.ToolCalls {
			toolNames[tc.ID] = tc.Name
		}
	}
	for _, msg := range conversation {
		switch msg.Role {
		case agent.RoleSystem:
			req.Messages = append(req.Messages, ollamaChatMessage{Role: "system", Content: msg.Content})
		case agent.RoleAssistant:
			m := ollamaChatMessage{Role: "assistant", Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				m.ToolCalls = append(m.ToolCalls, ollamaToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: ollamaToolFunction{Name: tc.Name, Arguments: args},
				})
			}
			req.Messages = append(req.Messages, m)
		case agent.RoleTool:
			req.Messages = append(req.Messages, ollamaChatMessage{
				Role:     "tool",
				Content:  msg.Content,
				ToolName: toolNames[msg.ToolCallID],
			})
		default:
			req.Messages = append(req.Messages, ollamaChatMessage{Role: "user", Content: msg.Content})
		}
	}
	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}
	if opts.MaxTokens != nil {
		req.Options = map[string]any{"num_predict": *opts.MaxTokens}
	}
	return req
}

func (c *ollamaClient) do(ctx context.Context, req ollamaChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal ollama request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, NetworkError(err.Error(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NetworkError(err.Error(), err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		msg := fmt.Sprintf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, RateLimitError(msg, nil)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, AuthError(msg, nil)
		}
		return nil, ServiceError(resp.StatusCode, msg, nil)
	}
	return resp, nil
}

func (c *ollamaClient) Complete(ctx context.Context, conversation agent.Conversation, opts agent.CompletionOptions) (agent.Completion, error) {
	resp, err := c.do(ctx, c.buildRequest(conversation, opts, false))
	if err != nil {
		return agent.Completion{}, err
	}
	defer resp.Body.Close()

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return agent.Completion{}, LLMError(fmt.Sprintf("decode ollama response: %v", err), err)
	}
	if parsed.Error != "" {
		return agent.Completion{}, LLMError(parsed.Error, nil)
	}

	var content string
	var toolCalls []agent.ToolCall
	if parsed.Message != nil {
		content = parsed.Message.Content
		for _, tc := range parsed.Message.ToolCalls {
			id := tc.ID
			if id == "" {
				id = uuid.NewString()
			}
			args := tc.Function.Arguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			toolCalls = append(toolCalls, agent.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args})
		}
	}

	return agent.Completion{
		Content:   content,
		Message:   agent.NewAssistantMessage(content, toolCalls),
		ToolCalls: toolCalls,
		Usage: &agent.Usage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
		},
	}, nil
}

func (c *ollamaClient) StreamComplete(ctx context.Context, conversation agent.Conversation, opts agent.CompletionOptions, onChunk func(agent.StreamedChunk)) (agent.Completion, error) {
	if err := requireCallback(onChunk); err != nil {
		return agent.Completion{}, err
	}
	resp, err := c.do(ctx, c.buildRequest(conversation, opts, true))
	if err != nil {
		return agent.Completion{}, err
	}
	defer resp.Body.Close()

	var textBuf string
	var toolCalls []agent.ToolCall
	emitted := map[string]struct{}{}
	var usage agent.Usage

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var parsed ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			return agent.Completion{}, LLMError(fmt.Sprintf("decode ollama stream line: %v", err), err)
		}
		if parsed.Error != "" {
			return agent.Completion{}, LLMError(parsed.Error, nil)
		}
		if parsed.Message != nil {
			if parsed.Message.Content != "" {
				textBuf += parsed.Message.Content
				onChunk(agent.StreamedChunk{Content: parsed.Message.Content})
			}
			for _, tc := range parsed.Message.ToolCalls {
				id := tc.ID
				if id == "" {
					id = tc.Function.Name + ":" + string(tc.Function.Arguments)
				}
				if _, ok := emitted[id]; ok {
					continue
				}
				emitted[id] = struct{}{}
				args := tc.Function.Arguments
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				callID := tc.ID
				if callID == "" {
					callID = uuid.NewString()
				}
				call := agent.ToolCall{ID: callID, Name: tc.Function.Name, Arguments: args}
				toolCalls = append(toolCalls, call)
				onChunk(agent.StreamedChunk{ToolCall: &call})
			}
		}
		if parsed.Done {
			usage = agent.Usage{
				PromptTokens:     parsed.PromptEvalCount,
				CompletionTokens: parsed.EvalCount,
				TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
			}
			onChunk(agent.StreamedChunk{FinishReason: "stop"})
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return agent.Completion{}, NetworkError(err.Error(), err)
	}

	return agent.Completion{
		Content:   textBuf,
		Message:   agent.NewAssistantMessage(textBuf, toolCalls),
		ToolCalls: toolCalls,
		Usage:     &usage,
	}, nil
}
