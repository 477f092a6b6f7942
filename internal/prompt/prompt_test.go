package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/Shahroz/reels-ai-sub002/internal/session"
	"github.com/Shahroz/reels-ai-sub002/internal/tools"
)

func sampleData() *session.Data {
	goal := "find the best pizza in town"
	return &session.Data{
		SessionID:    session.NewID(),
		ResearchGoal: &goal,
		History: []session.ConversationEntry{
			{ID: session.NewID(), Sender: session.SenderUser, Message: "hello", Timestamp: time.Now().UTC()},
			{ID: session.NewID(), Sender: session.SenderAgent, Message: "searching", Timestamp: time.Now().UTC(),
				Tools: []session.ToolChoice{{Name: "search", Parameters: []byte(`{"q":"pizza"}`)}}},
			{ID: session.NewID(), Sender: session.SenderTool, Message: "Found 3", Timestamp: time.Now().UTC()},
		},
	}
}

func TestBuildLLMPrompt_EmptyHistory(t *testing.T) {
	data := &session.Data{SessionID: session.NewID()}
	_, err := BuildLLMPrompt(data, tools.NewAggregatedSchema(tools.NewRegistry()))
	if err != ErrEmptyHistory {
		t.Fatalf("got %v, want ErrEmptyHistory", err)
	}
}

func TestBuildLLMPrompt_Idempotent(t *testing.T) {
	data := sampleData()
	schema := tools.NewAggregatedSchema(tools.NewRegistry())

	first, err := BuildLLMPrompt(data, schema)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, err := BuildLLMPrompt(data, schema)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("message %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestBuildLLMPrompt_Ordering(t *testing.T) {
	data := sampleData()
	schema := tools.NewAggregatedSchema(tools.NewRegistry())

	messages, err := BuildLLMPrompt(data, schema)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// system, research goal system, user, assistant, tool-result system
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d: %+v", len(messages), messages)
	}
	if messages[0].Role != "system" {
		t.Fatalf("message 0 role = %q, want system", messages[0].Role)
	}
	if messages[1].Content != "Current Research Goal: find the best pizza in town" {
		t.Fatalf("message 1 content = %q", messages[1].Content)
	}
	if messages[2].Role != "user" || messages[2].Content != "hello" {
		t.Fatalf("message 2 = %+v", messages[2])
	}
	if messages[3].Role != "assistant" {
		t.Fatalf("message 3 role = %q, want assistant", messages[3].Role)
	}
	if messages[4].Role != "system" || messages[4].Content != "*Tool Result:* Found 3" {
		t.Fatalf("message 4 = %+v", messages[4])
	}
}

func TestBuildLLMPrompt_NoToolsSentence(t *testing.T) {
	data := sampleData()
	data.ResearchGoal = nil
	schema := tools.NewAggregatedSchema(tools.NewRegistry())

	messages, err := BuildLLMPrompt(data, schema)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if messages[0].Content == "" {
		t.Fatal("expected non-empty system message")
	}
	if !strings.Contains(messages[0].Content, noToolsSentence) {
		t.Fatalf("expected default system message to contain the no-tools sentence, got %q", messages[0].Content)
	}
}
