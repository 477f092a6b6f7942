package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIVendor adapts the Chat Completions API.
type OpenAIVendor struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIVendor builds a vendor backed by the given API key.
func NewOpenAIVendor(apiKey, defaultModel string) *OpenAIVendor {
	return &OpenAIVendor{client: openai.NewClient(apiKey), defaultModel: defaultModel}
}

func (v *OpenAIVendor) Name() string { return "openai" }

// Complete issues a single non-streaming chat completion and returns the
// first choice's message content.
func (v *OpenAIVendor) Complete(ctx context.Context, req llm.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = v.defaultModel
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.Format == llm.OutputJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := v.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classifyOpenAIError(v.Name(), model, err)
	}
	if len(resp.Choices) == 0 {
		return "", &llm.Error{Kind: llm.ErrorAPI, Vendor: v.Name(), Model: model, Body: "empty choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(vendor, model string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.Error{
			Kind:       llm.ErrorAPI,
			Vendor:     vendor,
			Model:      model,
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
			Cause:      err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.Error{Kind: llm.ErrorNetwork, Vendor: vendor, Model: model, StatusCode: reqErr.HTTPStatusCode, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{Kind: llm.ErrorTimeout, Vendor: vendor, Model: model, Cause: err}
	}
	return &llm.Error{Kind: llm.ErrorNetwork, Vendor: vendor, Model: model, StatusCode: http.StatusServiceUnavailable, Cause: err}
}
