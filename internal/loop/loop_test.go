package loop

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shahroz/reels-ai-sub002/internal/config"
	"github.com/Shahroz/reels-ai-sub002/internal/credits"
	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
	"github.com/Shahroz/reels-ai-sub002/internal/tools"
)

// loopTestVendor scripts a sequence of raw LLM reply bodies, one per
// call, repeating the last entry once exhausted.
type loopTestVendor struct {
	replies []string
	calls   int32
}

func (v *loopTestVendor) Name() string { return "test" }

func (v *loopTestVendor) Complete(ctx context.Context, req llm.Request) (string, error) {
	i := atomic.AddInt32(&v.calls, 1) - 1
	idx := int(i)
	if idx >= len(v.replies) {
		idx = len(v.replies) - 1
	}
	return v.replies[idx], nil
}

func newOrchestrator(t *testing.T, vendor llm.Vendor, registry *tools.Registry, cfg *config.Config) *Orchestrator {
	t.Helper()
	store := session.NewStore()
	client := llm.NewClient(vendor)
	if registry == nil {
		registry = tools.NewRegistry()
	}
	registry.Freeze()
	dispatcher := tools.NewDispatcher(registry)
	schema := tools.NewAggregatedSchema(registry)

	if cfg == nil {
		cfg = &config.Config{
			LLM: config.LLMConfig{ConversationModels: []llm.VendorModel{{Vendor: "test", Model: "m"}}},
		}
	}

	return &Orchestrator{
		Store:      store,
		LLM:        client,
		Dispatcher: dispatcher,
		Schema:     schema,
		Config:     cfg,
		Credits:    tools.Deps{Sessions: store, Credits: credits.NoopCredits{}},
	}
}

func TestRunSync_HappyPathNoTools(t *testing.T) {
	vendor := &loopTestVendor{replies: []string{
		`{"agent_reasoning":"add","user_answer":"4","is_final":true,"actions":[]}`,
	}}
	orch := newOrchestrator(t, vendor, nil, nil)
	id := orch.Store.CreateSession(session.Config{TimeLimit: time.Hour, CompactionPolicy: session.CompactionPolicy{KeepLast: 10}})

	history, err := orch.RunSync(context.Background(), id, "What is 2+2?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(history), history)
	}
	if history[0].Sender != session.SenderUser || history[0].Message != "What is 2+2?" {
		t.Fatalf("entry 0 = %+v", history[0])
	}
	if history[1].Sender != session.SenderAgent || history[1].Message != "4" {
		t.Fatalf("entry 1 = %+v", history[1])
	}

	data := orch.Store.GetSession(id)
	if data.Status.Kind != session.StatusCompleted {
		t.Fatalf("expected Completed, got %s", data.Status.Kind)
	}
}

func TestRunSync_OneToolRoundTrip(t *testing.T) {
	vendor := &loopTestVendor{replies: []string{
		`{"agent_reasoning":"r","user_answer":"Searching...","is_final":false,"actions":[{"tool":"search","parameters":{"q":"x"}}]}`,
		`{"agent_reasoning":"r2","user_answer":"Done","is_final":true,"actions":[]}`,
	}}

	registry := tools.NewRegistry()
	err := registry.Register("search", "search the web", struct {
		Query string `json:"q"`
	}{}, func(ctx context.Context, call session.ToolChoice, deps tools.Deps, sid session.ID) (session.FullToolResponse, session.UserToolResponse, error) {
		return session.FullToolResponse{ToolName: "search", Response: json.RawMessage(`{"hits":3}`)},
			session.UserToolResponse{ToolName: "search", Summary: "Found 3"}, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	orch := newOrchestrator(t, vendor, registry, nil)
	id := orch.Store.CreateSession(session.Config{TimeLimit: time.Hour, CompactionPolicy: session.CompactionPolicy{KeepLast: 10}})

	history, runErr := orch.RunSync(context.Background(), id, "research x", nil)
	if runErr != nil {
		t.Fatalf("unexpected error: %v", runErr)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 entries, got %d: %+v", len(history), history)
	}
	if history[0].Sender != session.SenderUser {
		t.Fatalf("entry 0 sender = %s", history[0].Sender)
	}
	if history[1].Sender != session.SenderAgent || history[1].Message != "Searching..." {
		t.Fatalf("entry 1 = %+v", history[1])
	}
	if history[2].Sender != session.SenderTool || history[2].Message != "Found 3" {
		t.Fatalf("entry 2 = %+v", history[2])
	}
	if string(history[2].ToolResponse) != `{"hits":3}` {
		t.Fatalf("tool response = %s", history[2].ToolResponse)
	}
	if history[3].Sender != session.SenderAgent || history[3].Message != "Done" {
		t.Fatalf("entry 3 = %+v", history[3])
	}
}

func TestRunSync_SalvageSuccess(t *testing.T) {
	// The raw reply has a literal newline inside the user_answer string,
	// which the salvager must recover before schema validation.
	raw := "{\"agent_reasoning\":\"r\",\"user_answer\":\"line1\nline2\",\"is_final\":true,\"actions\":[]}"
	vendor := &loopTestVendor{replies: []string{raw}}
	orch := newOrchestrator(t, vendor, nil, nil)
	id := orch.Store.CreateSession(session.Config{TimeLimit: time.Hour, CompactionPolicy: session.CompactionPolicy{KeepLast: 10}})

	history, err := orch.RunSync(context.Background(), id, "go", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if history[1].Message != "line1\nline2" {
		t.Fatalf("got message %q", history[1].Message)
	}
}

func TestRunSync_CompactionFires(t *testing.T) {
	vendor := &loopTestVendor{replies: []string{"earlier talk"}}
	orch := newOrchestrator(t, vendor, nil, nil)
	id := orch.Store.CreateSession(session.Config{TimeLimit: time.Hour, CompactionPolicy: session.CompactionPolicy{KeepLast: 1}})

	base := time.Now().UTC().Add(-time.Minute)
	for i, msg := range []string{"U1", "A1", "U2"} {
		if err := orch.Store.AddConversationEntry(id, session.ConversationEntry{
			ID: session.NewID(), Sender: session.SenderUser, Message: msg,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// A vendor whose first reply is the plain-text compaction summary and
	// whose second reply is a final JSON agent response, so the loop ends
	// right after compaction has had exactly one chance to run.
	orch.LLM = llm.NewClient(&multiReplyVendor{
		first:  "earlier talk",
		second: `{"agent_reasoning":"r","user_answer":"ok","is_final":true,"actions":[]}`,
	})

	_, err := orch.RunSync(context.Background(), id, "ignored", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := orch.Store.GetSession(id)
	if data.History[0].Sender != session.SenderSystem {
		t.Fatalf("expected compacted System summary first, got %+v", data.History[0])
	}
	want := "Summary of earlier conversation: earlier talk"
	if data.History[0].Message != want {
		t.Fatalf("got %q, want %q", data.History[0].Message, want)
	}
}

// multiReplyVendor answers the first Complete call (a plain-text
// summarization request) with `first`, and every subsequent call with
// `second` (a JSON agent response).
type multiReplyVendor struct {
	first, second string
	calls         int32
}

func (v *multiReplyVendor) Name() string { return "test" }

func (v *multiReplyVendor) Complete(ctx context.Context, req llm.Request) (string, error) {
	if atomic.AddInt32(&v.calls, 1) == 1 {
		return v.first, nil
	}
	return v.second, nil
}

func TestRunSync_Timeout(t *testing.T) {
	vendor := &loopTestVendor{replies: []string{`{"is_final":true,"actions":[]}`}}
	orch := newOrchestrator(t, vendor, nil, nil)
	id := orch.Store.CreateSession(session.Config{
		TimeLimit:        0,
		CompactionPolicy: session.CompactionPolicy{KeepLast: 10},
	})

	_, err := orch.RunSync(context.Background(), id, "go", nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	loopErr, ok := err.(*Error)
	if !ok || loopErr.Kind != ErrorTimeout {
		t.Fatalf("got %v, want ErrorTimeout", err)
	}

	data := orch.Store.GetSession(id)
	if data.Status.Kind != session.StatusTimeout {
		t.Fatalf("expected Timeout status, got %s", data.Status.Kind)
	}
}

func TestRunSync_ToolNotFound(t *testing.T) {
	vendor := &loopTestVendor{replies: []string{
		`{"agent_reasoning":"r","user_answer":"trying","is_final":false,"actions":[{"tool":"ghost","parameters":{}}]}`,
		`{"agent_reasoning":"r2","user_answer":"done","is_final":true,"actions":[]}`,
	}}
	orch := newOrchestrator(t, vendor, nil, nil)
	id := orch.Store.CreateSession(session.Config{TimeLimit: time.Hour, CompactionPolicy: session.CompactionPolicy{KeepLast: 10}})

	history, err := orch.RunSync(context.Background(), id, "go", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var toolEntry *session.ConversationEntry
	for i := range history {
		if history[i].Sender == session.SenderTool {
			toolEntry = &history[i]
		}
	}
	if toolEntry == nil {
		t.Fatal("expected a Tool entry for the not-found tool")
	}
	want := "Tool 'ghost' not found."
	if toolEntry.Message != want {
		t.Fatalf("got %q, want %q", toolEntry.Message, want)
	}

	data := orch.Store.GetSession(id)
	if data.Status.Kind != session.StatusCompleted {
		t.Fatalf("expected loop to proceed to completion, got %s", data.Status.Kind)
	}
}
