// Package tools implements the tool registry and dispatcher (C3): a
// name-keyed mapping of pluggable handlers, immutable after Freeze, plus
// the dispatch path that invokes a handler and fans start/success/
// failure events out to a session's observers.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Shahroz/reels-ai-sub002/internal/credits"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
	"github.com/Shahroz/reels-ai-sub002/internal/ws"
	"github.com/invopop/jsonschema"
)

// Deps is the narrow slice of shared state a handler needs, standing in
// for the "shared reference to AppState" spec.md describes: the session
// store (for the documented Session Store operations), the observer hub
// (so a handler can itself push a ReasoningUpdate mid-execution), and the
// credits interface. A full AppState is deliberately not threaded
// through here — Go packages form a DAG, and a Handler living in
// internal/tools cannot reference a type that itself embeds
// internal/tools.Dispatcher without a cycle, so the orchestrator passes
// only what the documented contract requires.
type Deps struct {
	Sessions *session.Store
	Observer *ws.Hub
	Credits  credits.Interface
}

// Handler is a registered tool's implementation.
type Handler func(ctx context.Context, call session.ToolChoice, deps Deps, sid session.ID) (session.FullToolResponse, session.UserToolResponse, error)

// registration pairs a handler with the definition published to the
// prompt builder.
type registration struct {
	def     session.ToolDefinition
	handler Handler
}

// Registry maps tool name to its registration. It becomes immutable once
// Freeze is called, matching spec.md §4.3's "immutable after process
// start".
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]registration
	frozen bool
}

// NewRegistry builds an empty, mutable registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registration)}
}

// Register adds name to the registry with the JSON schema reflected from
// paramsShape (a zero-value struct describing the tool's parameters).
// Register panics if called after Freeze, since the registry's whole
// contract is "immutable after process start."
func (r *Registry) Register(name, description string, paramsShape any, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("tools: Register called after Freeze")
	}

	schemaBytes, err := reflectSchema(paramsShape)
	if err != nil {
		return fmt.Errorf("tools: reflect schema for %q: %w", name, err)
	}

	r.tools[name] = registration{
		def: session.ToolDefinition{
			Name:                 name,
			Description:          description,
			ParametersJSONSchema: schemaBytes,
		},
		handler: handler,
	}
	return nil
}

// Freeze prevents further registration. Calling it more than once is a
// no-op.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return reg.handler, true
}

// Definitions returns every registered tool's definition, in no
// guaranteed order; callers that need determinism should sort by Name.
func (r *Registry) Definitions() []session.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]session.ToolDefinition, 0, len(r.tools))
	for _, reg := range r.tools {
		out = append(out, reg.def)
	}
	return out
}

func reflectSchema(shape any) (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.Reflect(shape)
	return json.Marshal(schema)
}

// AggregatedSchema is the concatenation of every registered tool's
// definition, pre-rendered for embedding in the prompt builder's
// <TOOL_JSON_SCHEMA> block.
type AggregatedSchema struct {
	Definitions []session.ToolDefinition
}

// NewAggregatedSchema snapshots the registry's current definitions.
// Call after Freeze so the snapshot reflects the final tool set.
func NewAggregatedSchema(r *Registry) *AggregatedSchema {
	return &AggregatedSchema{Definitions: r.Definitions()}
}

// Render produces the <TOOL_JSON_SCHEMA>...</TOOL_JSON_SCHEMA> block the
// prompt builder embeds, or "" when no tools are configured.
func (a *AggregatedSchema) Render() string {
	if a == nil || len(a.Definitions) == 0 {
		return ""
	}
	var buf bytes.Buffer
	buf.WriteString("<TOOL_JSON_SCHEMA>\n")
	for _, def := range a.Definitions {
		fmt.Fprintf(&buf, "- %s: %s\n  parameters: %s\n", def.Name, def.Description, def.ParametersJSONSchema)
	}
	buf.WriteString("</TOOL_JSON_SCHEMA>")
	return buf.String()
}
