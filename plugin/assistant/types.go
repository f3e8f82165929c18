// Package assistant implements the conversation run orchestrator: per-user
// thread lifecycle against a hosted assistant service, asynchronous run
// polling with bounded retry/backoff, and tool-call dispatch.
package assistant

import (
	"context"
	"encoding/json"
	"sync"
)

// RunStatus is the lifecycle state of one asynchronous run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
)

// Terminal reports whether the run can make no further progress.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	default:
		return false
	}
}

// ToolCallRequest is one named action the remote service asks the caller to
// execute while a run is paused in requires_action.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolCallResult answers exactly one ToolCallRequest.
type ToolCallResult struct {
	ID     string
	Output string
}

// RunState is one observation of a run. ToolCalls is populated only while
// Status is requires_action.
type RunState struct {
	Status    RunStatus
	ToolCalls []ToolCallRequest
}

// ExtractedContact is the structured side effect of the contact capture
// tool. It is handed to the notification sink and recorded in the store;
// the orchestrator itself does not own its persistence.
type ExtractedContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone_number"`
	Email string `json:"email"`
}

// Reply is the result of one successful turn.
type Reply struct {
	Text     string
	Contacts []ExtractedContact
}

// TurnEffects collects structured side effects produced by tool handlers
// during a single turn. It is carried through the handler context so the
// session can surface extraction results alongside the reply text.
type TurnEffects struct {
	// Username is the display name of the user whose turn is running,
	// available to tool handlers that need it for bookkeeping.
	Username string

	mu       sync.Mutex
	contacts []ExtractedContact
}

// AddContact records an extracted contact for the current turn.
func (e *TurnEffects) AddContact(c ExtractedContact) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contacts = append(e.contacts, c)
}

// Contacts returns the contacts captured so far.
func (e *TurnEffects) Contacts() []ExtractedContact {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ExtractedContact, len(e.contacts))
	copy(out, e.contacts)
	return out
}

type effectsKey struct{}

// WithEffects attaches a turn effects collector to the context.
func WithEffects(ctx context.Context, e *TurnEffects) context.Context {
	return context.WithValue(ctx, effectsKey{}, e)
}

// EffectsFromContext returns the turn effects collector, or nil when the
// handler runs outside a turn (AddContact on nil is a no-op).
func EffectsFromContext(ctx context.Context) *TurnEffects {
	e, _ := ctx.Value(effectsKey{}).(*TurnEffects)
	return e
}
