package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
)

// BedrockVendor adapts the Converse API shared across Bedrock's hosted
// foundation models.
type BedrockVendor struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// NewBedrockVendor builds a vendor from the standard AWS credential chain,
// scoped to the given region.
func NewBedrockVendor(ctx context.Context, region, defaultModel string) (*BedrockVendor, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, &llm.Error{Kind: llm.ErrorConfig, Vendor: "bedrock", Cause: err}
	}
	return &BedrockVendor{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: defaultModel,
	}, nil
}

func (v *BedrockVendor) Name() string { return "bedrock" }

// Complete issues a single non-streaming Converse call and flattens the
// reply's text content blocks.
func (v *BedrockVendor) Complete(ctx context.Context, req llm.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = v.defaultModel
	}

	messages := make([]types.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		messages = append(messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}

	out, err := v.client.Converse(ctx, input)
	if err != nil {
		return "", classifyBedrockError(v.Name(), model, err)
	}

	output, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", &llm.Error{Kind: llm.ErrorAPI, Vendor: v.Name(), Model: model, Body: "unexpected converse output shape"}
	}

	var sb strings.Builder
	for _, block := range output.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	return sb.String(), nil
}

func classifyBedrockError(vendor, model string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &llm.Error{Kind: llm.ErrorAPI, Vendor: vendor, Model: model, Body: apiErr.ErrorMessage(), Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{Kind: llm.ErrorTimeout, Vendor: vendor, Model: model, Cause: err}
	}
	return &llm.Error{Kind: llm.ErrorNetwork, Vendor: vendor, Model: model, StatusCode: http.StatusServiceUnavailable, Cause: err}
}
