// Package ws fans out observer events to a session's subscribers over
// gorilla/websocket connections. Event shapes are wire-compatible with
// the observer contract: ReasoningUpdate, ToolExecutionSuccess, and
// ToolExecutionFailure.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Shahroz/reels-ai-sub002/internal/session"
	"github.com/gorilla/websocket"
)

// EventKind tags the wire shape of an observer event.
type EventKind string

const (
	EventReasoningUpdate      EventKind = "reasoning_update"
	EventToolExecutionStart   EventKind = "tool_execution_start"
	EventToolExecutionSuccess EventKind = "tool_execution_success"
	EventToolExecutionFailure EventKind = "tool_execution_failure"
)

// Event is the envelope pushed to every subscriber of a session.
type Event struct {
	Kind      EventKind                `json:"kind"`
	Timestamp time.Time                `json:"timestamp"`
	Reasoning string                   `json:"reasoning,omitempty"`
	Tool      string                   `json:"tool,omitempty"`
	Success   *session.UserToolResponse `json:"success,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// Subscriber is a single observer connection for one session.
type Subscriber struct {
	conn *websocket.Conn

	mu sync.Mutex
}

// send writes event as a single text frame and returns any write error;
// the hub logs it and drops the subscriber.
func (s *Subscriber) send(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub fans observer events out to per-session subscriber lists. The
// subscriber-list lock covers only the lookup-and-snapshot step; writes
// to individual sockets happen after the lock is released, so a slow
// subscriber does not hold the lock other sessions need. The writes run
// one after another in the caller's goroutine, with no write deadline, so
// a slow subscriber does delay the caller (the dispatcher).
type Hub struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[session.ID][]*Subscriber
}

// NewHub builds an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, subscribers: make(map[session.ID][]*Subscriber)}
}

// Subscribe registers conn as an observer of sid and returns the
// Subscriber handle, used later to Unsubscribe.
func (h *Hub) Subscribe(sid session.ID, conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{conn: conn}
	h.mu.Lock()
	h.subscribers[sid] = append(h.subscribers[sid], sub)
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes sub from sid's subscriber list.
func (h *Hub) Unsubscribe(sid session.ID, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subscribers[sid]
	for i, s := range list {
		if s == sub {
			h.subscribers[sid] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(h.subscribers[sid]) == 0 {
		delete(h.subscribers, sid)
	}
}

// Publish is best-effort: it snapshots the subscriber list under lock,
// releases it, then sends to each subscriber outside the lock. It returns
// only after every send has finished or failed; a failed subscriber is
// dropped and no error reaches the caller.
func (h *Hub) Publish(sid session.ID, event Event) {
	h.mu.Lock()
	subs := append([]*Subscriber(nil), h.subscribers[sid]...)
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.send(event); err != nil {
			h.logger.Warn("ws: dropping subscriber after failed send", "session_id", sid, "error", err)
			h.Unsubscribe(sid, sub)
		}
	}
}

// ReasoningUpdate publishes a ReasoningUpdate(String) event.
func (h *Hub) ReasoningUpdate(sid session.ID, reasoning string) {
	h.Publish(sid, Event{Kind: EventReasoningUpdate, Timestamp: time.Now().UTC(), Reasoning: reasoning})
}

// ToolExecutionStart publishes the dispatcher's best-effort start event.
func (h *Hub) ToolExecutionStart(sid session.ID, tool string) {
	h.Publish(sid, Event{Kind: EventToolExecutionStart, Timestamp: time.Now().UTC(), Tool: tool})
}

// ToolExecutionSuccess publishes a ToolExecutionSuccess(UserToolResponse) event.
func (h *Hub) ToolExecutionSuccess(sid session.ID, resp session.UserToolResponse) {
	h.Publish(sid, Event{Kind: EventToolExecutionSuccess, Timestamp: time.Now().UTC(), Tool: resp.ToolName, Success: &resp})
}

// ToolExecutionFailure publishes a ToolExecutionFailure{error} event.
func (h *Hub) ToolExecutionFailure(sid session.ID, tool, errMsg string) {
	h.Publish(sid, Event{Kind: EventToolExecutionFailure, Timestamp: time.Now().UTC(), Tool: tool, Error: errMsg})
}
