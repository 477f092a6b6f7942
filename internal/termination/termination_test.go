package termination

import (
	"testing"
	"time"

	"github.com/Shahroz/reels-ai-sub002/internal/config"
	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
)

func baseData() *session.Data {
	return &session.Data{
		SessionID: session.NewID(),
		Status:    session.Status{Kind: session.StatusRunning},
		CreatedAt: time.Now().UTC(),
		Config:    session.Config{TimeLimit: time.Hour},
	}
}

func baseConfig() *config.Config {
	return &config.Config{LLM: config.LLMConfig{ConversationModels: []llm.VendorModel{{Vendor: "a", Model: "m"}}}}
}

func TestCheck_ProceedsWhenNothingMatches(t *testing.T) {
	if r := Check(baseData(), baseConfig()); r != nil {
		t.Fatalf("expected nil, got %+v", r)
	}
}

func TestCheck_AlreadyTerminalWinsFirst(t *testing.T) {
	data := baseData()
	data.Status = session.Status{Kind: session.StatusCompleted}
	data.Interrupted = true // would also match Interrupted; AlreadyTerminal must win

	r := Check(data, baseConfig())
	if r == nil || r.Kind != KindAlreadyTerminal {
		t.Fatalf("got %+v, want AlreadyTerminal", r)
	}
}

func TestCheck_Timeout(t *testing.T) {
	data := baseData()
	data.CreatedAt = time.Now().UTC().Add(-time.Hour)
	data.Config.TimeLimit = time.Millisecond

	r := Check(data, baseConfig())
	if r == nil || r.Kind != KindTimeout {
		t.Fatalf("got %+v, want Timeout", r)
	}
}

func TestCheck_Interrupted(t *testing.T) {
	data := baseData()
	data.Interrupted = true

	r := Check(data, baseConfig())
	if r == nil || r.Kind != KindInterrupted {
		t.Fatalf("got %+v, want Interrupted", r)
	}
}

func TestCheck_ConfigErrorOnEmptyModels(t *testing.T) {
	data := baseData()
	cfg := &config.Config{}

	r := Check(data, cfg)
	if r == nil || r.Kind != KindConfigError {
		t.Fatalf("got %+v, want ConfigError", r)
	}
}

func TestCheck_ZeroTimeLimitTimesOutImmediately(t *testing.T) {
	data := baseData()
	data.Config.TimeLimit = 0

	r := Check(data, baseConfig())
	if r == nil || r.Kind != KindTimeout {
		t.Fatalf("got %+v, want immediate Timeout with time_limit=0", r)
	}
}
