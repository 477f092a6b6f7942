package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"google.golang.org/genai"
)

// GeminiVendor adapts Google's unified Gen AI SDK.
type GeminiVendor struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiVendor builds a vendor backed by the given API key.
func NewGeminiVendor(ctx context.Context, apiKey, defaultModel string) (*GeminiVendor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &llm.Error{Kind: llm.ErrorConfig, Vendor: "gemini", Cause: err}
	}
	return &GeminiVendor{client: client, defaultModel: defaultModel}, nil
}

func (v *GeminiVendor) Name() string { return "gemini" }

// Complete issues a single non-streaming GenerateContent call and flattens
// the first candidate's text parts.
func (v *GeminiVendor) Complete(ctx context.Context, req llm.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = v.defaultModel
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	var config *genai.GenerateContentConfig
	if req.System != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
		}
	}
	if req.Format == llm.OutputJSON {
		if config == nil {
			config = &genai.GenerateContentConfig{}
		}
		config.ResponseMIMEType = "application/json"
	}

	resp, err := v.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", classifyGeminiError(v.Name(), model, err)
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

func classifyGeminiError(vendor, model string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.Error{Kind: llm.ErrorAPI, Vendor: vendor, Model: model, StatusCode: apiErr.Code, Body: apiErr.Message, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{Kind: llm.ErrorTimeout, Vendor: vendor, Model: model, Cause: err}
	}
	return &llm.Error{Kind: llm.ErrorNetwork, Vendor: vendor, Model: model, StatusCode: http.StatusServiceUnavailable, Cause: err}
}
