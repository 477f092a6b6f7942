package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Shahroz/reels-ai-sub002/internal/credits"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
)

type searchParams struct {
	Query string `json:"q"`
}

func TestDispatch_Success(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register("search", "search the web", searchParams{}, func(ctx context.Context, call session.ToolChoice, deps Deps, sid session.ID) (session.FullToolResponse, session.UserToolResponse, error) {
		return session.FullToolResponse{ToolName: "search", Response: json.RawMessage(`{"hits":3}`)},
			session.UserToolResponse{ToolName: "search", Summary: "Found 3"}, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	registry.Freeze()

	dispatcher := NewDispatcher(registry)
	full, user, err := dispatcher.Dispatch(context.Background(), session.ToolChoice{Name: "search"}, Deps{Credits: credits.NoopCredits{}}, session.NewID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Summary != "Found 3" {
		t.Fatalf("got summary %q", user.Summary)
	}
	if string(full.Response) != `{"hits":3}` {
		t.Fatalf("got response %s", full.Response)
	}
}

func TestDispatch_NotFound(t *testing.T) {
	registry := NewRegistry()
	registry.Freeze()
	dispatcher := NewDispatcher(registry)

	_, _, err := dispatcher.Dispatch(context.Background(), session.ToolChoice{Name: "ghost"}, Deps{}, session.NewID())
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := err.Error(), "Tool 'ghost' not found."; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDispatch_HandlerError(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("fail", "always fails", searchParams{}, func(ctx context.Context, call session.ToolChoice, deps Deps, sid session.ID) (session.FullToolResponse, session.UserToolResponse, error) {
		return session.FullToolResponse{}, session.UserToolResponse{}, errBoom
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	registry.Freeze()

	dispatcher := NewDispatcher(registry)
	_, _, err := dispatcher.Dispatch(context.Background(), session.ToolChoice{Name: "fail"}, Deps{}, session.NewID())
	if err != errBoom {
		t.Fatalf("got %v, want errBoom", err)
	}
}

func TestAggregatedSchema_Render(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("search", "search the web", searchParams{}, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	registry.Freeze()

	agg := NewAggregatedSchema(registry)
	rendered := agg.Render()
	if rendered == "" {
		t.Fatal("expected non-empty render")
	}
}

func TestAggregatedSchema_RenderEmpty(t *testing.T) {
	agg := NewAggregatedSchema(NewRegistry())
	if got := agg.Render(); got != "" {
		t.Fatalf("expected empty render, got %q", got)
	}
}

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }
