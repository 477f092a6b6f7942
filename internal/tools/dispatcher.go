package tools

import (
	"context"
	"fmt"

	"github.com/Shahroz/reels-ai-sub002/internal/session"
	"github.com/Shahroz/reels-ai-sub002/internal/ws"
)

// Dispatcher invokes a registered handler and fans start/success/failure
// events out to the session's observers, grounded on
// internal/agent/tool_registry.go's Execute/emitToolEvent split.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher wires a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch implements spec.md §4.3 steps 1-5. The observer hub's own
// lock covers only its subscriber-list lookup (see ws.Hub.Publish); the
// handler itself always runs outside any lock this package holds.
func (d *Dispatcher) Dispatch(ctx context.Context, call session.ToolChoice, deps Deps, sid session.ID) (session.FullToolResponse, session.UserToolResponse, error) {
	handler, ok := d.registry.Get(call.Name)
	if !ok {
		err := fmt.Errorf("Tool '%s' not found.", call.Name)
		if deps.Observer != nil {
			deps.Observer.ToolExecutionFailure(sid, call.Name, err.Error())
		}
		return session.FullToolResponse{}, session.UserToolResponse{}, err
	}

	if deps.Observer != nil {
		deps.Observer.ToolExecutionStart(sid, call.Name)
	}

	full, user, err := handler(ctx, call, deps, sid)
	if err != nil {
		if deps.Observer != nil {
			deps.Observer.ToolExecutionFailure(sid, call.Name, err.Error())
		}
		return session.FullToolResponse{}, session.UserToolResponse{}, err
	}

	if deps.Observer != nil {
		deps.Observer.ToolExecutionSuccess(sid, user)
	}
	return full, user, nil
}
