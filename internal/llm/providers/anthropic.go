// Package providers implements llm.Vendor adapters over the teacher
// corpus's four LLM SDKs: Anthropic, OpenAI, Gemini, and Bedrock.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicVendor adapts Anthropic's Messages API.
type AnthropicVendor struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropicVendor builds a vendor backed by the given API key. If
// baseURL is empty, the SDK's default endpoint is used.
func NewAnthropicVendor(apiKey, baseURL, defaultModel string) *AnthropicVendor {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicVendor{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
	}
}

func (v *AnthropicVendor) Name() string { return "anthropic" }

// Complete issues a single non-streaming Messages.New call and flattens
// the reply's text content blocks.
func (v *AnthropicVendor) Complete(ctx context.Context, req llm.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = v.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages:  convertMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := v.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyAnthropicError(v.Name(), model, err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if text := block.AsAny(); text != nil {
			if tb, ok := text.(anthropic.TextBlock); ok {
				sb.WriteString(tb.Text)
			}
		}
	}
	return sb.String(), nil
}

func convertMessages(messages []llm.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func classifyAnthropicError(vendor, model string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &llm.Error{
			Kind:       llm.ErrorAPI,
			Vendor:     vendor,
			Model:      model,
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Error(),
			Cause:      err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{Kind: llm.ErrorTimeout, Vendor: vendor, Model: model, Cause: err}
	}
	return &llm.Error{Kind: llm.ErrorNetwork, Vendor: vendor, Model: model, StatusCode: http.StatusServiceUnavailable, Cause: fmt.Errorf("anthropic request failed: %w", err)}
}
