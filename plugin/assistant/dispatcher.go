package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

// HandlerFunc executes one tool call for a user and returns the output
// payload submitted back to the remote service.
type HandlerFunc func(ctx context.Context, userID string, args json.RawMessage) (string, error)

type handlerEntry struct {
	fn       HandlerFunc
	critical bool
}

// Dispatcher maps tool-call names to local handlers. Registration happens
// once at wiring time; dispatch is safe for concurrent use afterwards.
type Dispatcher struct {
	handlers map[string]handlerEntry
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]handlerEntry)}
}

// Register binds a tool name to a handler. A failure of a non-critical
// handler is converted into an error output payload so sibling tool calls
// in the same action round still get answered.
func (d *Dispatcher) Register(name string, fn HandlerFunc) {
	d.handlers[name] = handlerEntry{fn: fn}
}

// RegisterCritical binds a tool name to a handler whose failure aborts the
// whole action round without submission.
func (d *Dispatcher) RegisterCritical(name string, fn HandlerFunc) {
	d.handlers[name] = handlerEntry{fn: fn, critical: true}
}

// Names returns the registered tool names, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch resolves a batch of tool calls from one requires_action pause
// into one result per request, preserving request order. An unknown tool
// name or a critical handler failure aborts the round with an error; the
// run is then failed locally without submission.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, calls []ToolCallRequest) ([]ToolCallResult, error) {
	results := make([]ToolCallResult, 0, len(calls))
	for _, call := range calls {
		entry, ok := d.handlers[call.Name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q requested by run", call.Name)
		}

		output, err := entry.fn(ctx, userID, call.Arguments)
		if err != nil {
			if entry.critical {
				return nil, fmt.Errorf("critical tool %q failed: %w", call.Name, err)
			}
			slog.Warn("tool handler failed, submitting error output",
				"tool", call.Name,
				"user_id", userID,
				"error", err)
			output = errorOutput(err)
		}
		results = append(results, ToolCallResult{ID: call.ID, Output: output})
	}
	return results, nil
}

// errorOutput encodes a handler failure as a payload the assistant can
// react to, so one failing tool call does not block its siblings.
func errorOutput(err error) string {
	payload, marshalErr := json.Marshal(map[string]string{
		"status":  "error",
		"message": err.Error(),
	})
	if marshalErr != nil {
		return `{"status":"error"}`
	}
	return string(payload)
}
