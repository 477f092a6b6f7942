package compaction

import (
	"context"
	"testing"
	"time"

	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
)

type stubVendor struct {
	name string
	text string
}

func (s stubVendor) Name() string { return s.name }
func (s stubVendor) Complete(ctx context.Context, req llm.Request) (string, error) {
	return s.text, nil
}

func seedSession(t *testing.T, store *session.Store, entries int) session.ID {
	t.Helper()
	id := store.CreateSession(session.Config{})
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < entries; i++ {
		err := store.AddConversationEntry(id, session.ConversationEntry{
			ID:        session.NewID(),
			Sender:    session.SenderUser,
			Message:   "message",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return id
}

func TestCompact_NoOpWhenUnderThreshold(t *testing.T) {
	store := session.NewStore()
	id := seedSession(t, store, 3)
	client := llm.NewClient(stubVendor{name: "a", text: "summary"})
	candidates := []llm.VendorModel{{Vendor: "a", Model: "m"}}

	if err := Compact(context.Background(), store, client, candidates, id, session.CompactionPolicy{KeepLast: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := store.GetSession(id)
	if len(data.History) != 3 {
		t.Fatalf("expected no-op, got %d entries", len(data.History))
	}
}

func TestCompact_SummarizesPrefix(t *testing.T) {
	store := session.NewStore()
	id := seedSession(t, store, 3)
	client := llm.NewClient(stubVendor{name: "a", text: "earlier talk"})
	candidates := []llm.VendorModel{{Vendor: "a", Model: "m"}}

	if err := Compact(context.Background(), store, client, candidates, id, session.CompactionPolicy{KeepLast: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := store.GetSession(id)
	if len(data.History) != 2 {
		t.Fatalf("expected 2 entries after compaction, got %d", len(data.History))
	}
	if data.History[0].Sender != session.SenderSystem {
		t.Fatalf("expected first entry to be System, got %s", data.History[0].Sender)
	}
	want := "Summary of earlier conversation: earlier talk"
	if data.History[0].Message != want {
		t.Fatalf("got message %q, want %q", data.History[0].Message, want)
	}
}

func TestCompact_KeepLastZeroSummarizesAll(t *testing.T) {
	store := session.NewStore()
	id := seedSession(t, store, 4)
	client := llm.NewClient(stubVendor{name: "a", text: "all of it"})
	candidates := []llm.VendorModel{{Vendor: "a", Model: "m"}}

	if err := Compact(context.Background(), store, client, candidates, id, session.CompactionPolicy{KeepLast: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := store.GetSession(id)
	if len(data.History) != 1 {
		t.Fatalf("expected single summary entry, got %d", len(data.History))
	}
}

func TestCompact_DoubleRunIsNoOpOnSecondPass(t *testing.T) {
	store := session.NewStore()
	id := seedSession(t, store, 3)
	client := llm.NewClient(stubVendor{name: "a", text: "earlier talk"})
	candidates := []llm.VendorModel{{Vendor: "a", Model: "m"}}
	policy := session.CompactionPolicy{KeepLast: 1}

	if err := Compact(context.Background(), store, client, candidates, id, policy); err != nil {
		t.Fatalf("first compact: %v", err)
	}
	afterFirst := store.GetSession(id)

	if err := Compact(context.Background(), store, client, candidates, id, policy); err != nil {
		t.Fatalf("second compact: %v", err)
	}
	afterSecond := store.GetSession(id)

	if len(afterFirst.History) != len(afterSecond.History) {
		t.Fatalf("second compaction mutated history: %d vs %d", len(afterFirst.History), len(afterSecond.History))
	}
	if afterFirst.History[0].Message != afterSecond.History[0].Message {
		t.Fatalf("summary text changed across a re-run over an unchanged tail: %q vs %q",
			afterFirst.History[0].Message, afterSecond.History[0].Message)
	}
	// The kept suffix (everything after the summary entry) is untouched by
	// the second pass.
	for i := 1; i < len(afterFirst.History); i++ {
		if afterFirst.History[i].ID != afterSecond.History[i].ID {
			t.Fatalf("kept entry %d id changed across re-run", i)
		}
	}
}
