package evaluator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shahroz/reels-ai-sub002/internal/session"
)

type countingHandler struct {
	calls int32
}

func (h *countingHandler) Evaluate(ctx context.Context, data *session.Data) error {
	atomic.AddInt32(&h.calls, 1)
	return nil
}

func TestPoller_TicksOverRunningSessions(t *testing.T) {
	store := session.NewStore()
	id := store.CreateSession(session.Config{})
	if err := store.UpdateStatus(id, session.Status{Kind: session.StatusRunning}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	other := store.CreateSession(session.Config{})
	if err := store.UpdateStatus(other, session.Status{Kind: session.StatusCompleted}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	handler := &countingHandler{}
	p := New(store, handler, Config{SleepSeconds: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	time.Sleep(1200 * time.Millisecond)

	if atomic.LoadInt32(&handler.calls) == 0 {
		t.Fatal("expected at least one tick to evaluate the running session")
	}
}

func TestPoller_StartTwiceIsNoOp(t *testing.T) {
	store := session.NewStore()
	handler := &countingHandler{}
	p := New(store, handler, Config{SleepSeconds: 60})

	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx)
	p.Stop()
}
