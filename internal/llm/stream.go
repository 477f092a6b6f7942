package llm

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// StreamChatCompletion is an auxiliary, non-critical-path facility for
// interactive callers (e.g. a CLI demo) that want to render tokens as
// they arrive rather than wait for a full Raw/Typed round trip. It is
// never used by the research loop orchestrator itself.
type StreamChatCompletion struct {
	client *openai.Client
}

// NewStreamChatCompletion builds a streaming facade over the OpenAI
// Chat Completions streaming endpoint.
func NewStreamChatCompletion(apiKey string) *StreamChatCompletion {
	return &StreamChatCompletion{client: openai.NewClient(apiKey)}
}

// Stream sends req and invokes onDelta for each non-empty text chunk as it
// arrives, filtering the terminal [DONE] sentinel the wire protocol sends.
func (s *StreamChatCompletion) Stream(ctx context.Context, model, system, prompt string, onDelta func(string)) error {
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return &Error{Kind: ErrorNetwork, Vendor: "openai", Model: model, Cause: err}
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &Error{Kind: ErrorNetwork, Vendor: "openai", Model: model, Cause: err}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			onDelta(delta)
		}
	}
}
