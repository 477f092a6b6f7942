// Package session owns the conversation data model and the in-memory
// session store that the research loop mutates: SessionData, its history
// of ConversationEntry values, and the status machine that drives
// termination.
package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ID is a session's opaque 128-bit identifier.
type ID = uuid.UUID

// NewID generates a fresh, globally unique session id.
func NewID() ID {
	return uuid.New()
}

// ParseID parses a printed session id.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}

// Sender tags who produced a ConversationEntry.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAgent     Sender = "agent"
	SenderSystem    Sender = "system"
	SenderTool      Sender = "tool"
	SenderAssistant Sender = "assistant"
)

// ToolChoice names a tool and carries its unvalidated call parameters.
// Parameters stay a raw JSON value at the entry boundary. The dispatcher
// hands them to the handler as they are; it does not validate them
// against the tool's ParametersJSONSchema.
type ToolChoice struct {
	Name       string          `json:"tool"`
	Parameters json.RawMessage `json:"parameters"`
}

// AttachmentRef is an opaque pass-through reference to a blob stored
// outside the agent loop (object storage, generated media, ...).
type AttachmentRef struct {
	ID          string `json:"id"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url,omitempty"`
}

// ConversationEntry is one ordered element of a session's history.
//
// Invariant: Timestamp is monotonic non-decreasing across an entry's
// position in history. Sender == SenderTool implies ToolResponse is set.
// Sender == SenderAgent may carry an empty or non-empty Tools slice.
type ConversationEntry struct {
	ID           uuid.UUID       `json:"id"`
	ParentID     *uuid.UUID      `json:"parent_id,omitempty"`
	Depth        int             `json:"depth"`
	Sender       Sender          `json:"sender"`
	Message      string          `json:"message"`
	Timestamp    time.Time       `json:"timestamp"`
	Tools        []ToolChoice    `json:"tools,omitempty"`
	Attachments  []AttachmentRef `json:"attachments,omitempty"`
	ToolChoice   *ToolChoice     `json:"tool_choice,omitempty"`
	ToolResponse json.RawMessage `json:"tool_response,omitempty"`
}

// Clone returns a deep copy of the entry so callers never share the
// slices backing Tools/Attachments with the store.
func (e ConversationEntry) Clone() ConversationEntry {
	out := e
	if e.ParentID != nil {
		id := *e.ParentID
		out.ParentID = &id
	}
	if e.Tools != nil {
		out.Tools = append([]ToolChoice(nil), e.Tools...)
	}
	if e.Attachments != nil {
		out.Attachments = append([]AttachmentRef(nil), e.Attachments...)
	}
	if e.ToolChoice != nil {
		tc := *e.ToolChoice
		out.ToolChoice = &tc
	}
	if e.ToolResponse != nil {
		out.ToolResponse = append(json.RawMessage(nil), e.ToolResponse...)
	}
	return out
}

// StatusKind is the tagged variant over a session's lifecycle states.
type StatusKind string

const (
	StatusPending     StatusKind = "pending"
	StatusRunning     StatusKind = "running"
	StatusCompleted   StatusKind = "completed"
	StatusError       StatusKind = "error"
	StatusTimeout     StatusKind = "timeout"
	StatusInterrupted StatusKind = "interrupted"
)

// IsTerminal reports whether the status belongs to the terminal set
// {Completed, Error, Timeout, Interrupted}.
func (k StatusKind) IsTerminal() bool {
	switch k {
	case StatusCompleted, StatusError, StatusTimeout, StatusInterrupted:
		return true
	default:
		return false
	}
}

// Status is a SessionStatus value. Progress is only meaningful when Kind
// is StatusRunning.
type Status struct {
	Kind     StatusKind `json:"kind"`
	Progress *string    `json:"progress,omitempty"`
}

// IsTerminal reports whether the status is in the terminal set.
func (s Status) IsTerminal() bool { return s.Kind.IsTerminal() }

// CompactionPolicy configures when and how the history compactor fires.
// Compaction triggers once len(history) > KeepLast, except when the only
// entry ahead of the kept tail is an earlier summary entry.
type CompactionPolicy struct {
	KeepLast      int `yaml:"keep_last" json:"keep_last"`
	SummaryLength int `yaml:"summary_length" json:"summary_length"`
}

// EvaluationPolicy configures the out-of-scope evaluator's poll cadence
// for this session; the loop itself does not consult it.
type EvaluationPolicy struct {
	PollSeconds int `yaml:"poll_seconds" json:"poll_seconds"`
}

// Config is a session's static per-session policy bundle.
type Config struct {
	TimeLimit          time.Duration     `json:"time_limit"`
	TokenThreshold      uint32            `json:"token_threshold"`
	PreserveExchanges   uint32            `json:"preserve_exchanges"`
	InitialInstruction  *string           `json:"initial_instruction,omitempty"`
	CompactionPolicy    CompactionPolicy  `json:"compaction_policy"`
	EvaluationPolicy    EvaluationPolicy  `json:"evaluation_policy"`
}

// ToolDefinition describes a registered tool's name, description, and the
// JSON schema its parameters must validate against.
type ToolDefinition struct {
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	ParametersJSONSchema json.RawMessage `json:"parameters_json_schema"`
}

// ContextEntry is an opaque piece of long-lived session context distinct
// from the turn-by-turn conversation history (saved facts, documents,
// research notes accumulated by tools).
type ContextEntry struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	Content   json.RawMessage `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
}

// Data is a session's full state: identity, status, configuration,
// conversation history, accumulated context, and the tool surface visible
// to the LLM for this session.
type Data struct {
	SessionID            ID               `json:"session_id"`
	UserID               *string          `json:"user_id,omitempty"`
	Status               Status           `json:"status"`
	Config               Config           `json:"config"`
	History              []ConversationEntry `json:"history"`
	Context              []ContextEntry   `json:"context"`
	ResearchGoal         *string          `json:"research_goal,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	LastActivityTimestamp time.Time       `json:"last_activity_timestamp"`
	SystemMessage        *string          `json:"system_message,omitempty"`
	ToolDefinitions      []ToolDefinition `json:"tool_definitions"`
	Interrupted          bool             `json:"interrupted"`
}

// Clone returns a deep copy decoupled from the store's backing slices.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := *d
	if d.UserID != nil {
		v := *d.UserID
		out.UserID = &v
	}
	if d.Status.Progress != nil {
		v := *d.Status.Progress
		out.Status.Progress = &v
	}
	if d.Config.InitialInstruction != nil {
		v := *d.Config.InitialInstruction
		out.Config.InitialInstruction = &v
	}
	if d.History != nil {
		out.History = make([]ConversationEntry, len(d.History))
		for i, e := range d.History {
			out.History[i] = e.Clone()
		}
	}
	if d.Context != nil {
		out.Context = make([]ContextEntry, len(d.Context))
		copy(out.Context, d.Context)
		for i, c := range d.Context {
			if c.Content != nil {
				out.Context[i].Content = append(json.RawMessage(nil), c.Content...)
			}
		}
	}
	if d.ResearchGoal != nil {
		v := *d.ResearchGoal
		out.ResearchGoal = &v
	}
	if d.SystemMessage != nil {
		v := *d.SystemMessage
		out.SystemMessage = &v
	}
	if d.ToolDefinitions != nil {
		out.ToolDefinitions = append([]ToolDefinition(nil), d.ToolDefinitions...)
	}
	return &out
}

// LlmAgentResponse is the structured shape the LLM is contractually
// required to emit on every turn.
type LlmAgentResponse struct {
	AgentReasoning string       `json:"agent_reasoning"`
	UserAnswer     string       `json:"user_answer"`
	Title          *string      `json:"title,omitempty"`
	IsFinal        bool         `json:"is_final"`
	Actions        []ToolChoice `json:"actions"`
}

// FullToolResponse is the full structured tool output handed back to the
// LLM on the next turn.
type FullToolResponse struct {
	ToolName string          `json:"tool_name"`
	Response json.RawMessage `json:"response"`
}

// UserToolResponse is the compact, human-facing view of a tool result.
type UserToolResponse struct {
	ToolName string          `json:"tool_name"`
	Summary  string          `json:"summary"`
	Icon     *string         `json:"icon,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}
