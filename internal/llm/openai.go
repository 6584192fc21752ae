package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible chat-completions endpoint
// (Ollama's /v1, vLLM, or the hosted API).
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(baseURL, apiKey string) *OpenAIClient {
	if apiKey == "" {
		apiKey = "unused" // local endpoints ignore the key but the client requires one
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

func (c *OpenAIClient) Chat(ctx context.Context, req Request) (*Response, error) {
	oreq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: float32(req.Options.Temperature),
		MaxTokens:   req.Options.NumPredict,
		Messages:    toOpenAIMessages(clampToContext(req.Messages, req.Options.NumCtx)),
		Tools:       toOpenAITools(req.Tools),
	}

	resp, err := c.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &Response{}, nil
	}

	choice := resp.Choices[0].Message
	out := &Response{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// clampToContext drops the oldest conversation turns until a coarse
// 4-bytes-per-token estimate of the prompt fits inside numCtx. System
// messages always survive, tool results go together with the turn that
// produced them, and the newest message is never dropped.
func clampToContext(msgs []Message, numCtx int) []Message {
	if numCtx <= 0 {
		return msgs
	}

	total := 0
	for _, m := range msgs {
		total += estimateTokens(m)
	}

	out := append([]Message(nil), msgs...)
	for total > numCtx {
		i := 0
		for i < len(out) && out[i].Role == RoleSystem {
			i++
		}
		j := i + 1
		for j < len(out) && out[j].Role == RoleTool {
			j++
		}
		if j > len(out)-1 {
			break
		}
		for k := i; k < j; k++ {
			total -= estimateTokens(out[k])
		}
		out = append(out[:i], out[j:]...)
	}
	return out
}

func estimateTokens(m Message) int {
	n := len(m.Content)/4 + 4
	for _, tc := range m.ToolCalls {
		n += (len(tc.Name) + len(tc.Arguments)) / 4
	}
	return n
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(defs []ToolDef) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}
