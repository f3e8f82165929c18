package assistant

import "context"

// Client is the typed adapter over the remote assistant service's
// thread/message/run primitives. Implementations carry no business logic;
// every returned error is already classified transient-vs-fatal
// (*ClassifiedError), which is the single source of truth consumed by the
// poller's retry policy. Context cancellation errors pass through unwrapped.
type Client interface {
	// CreateThread creates a new conversation thread for a user.
	CreateThread(ctx context.Context, userID string) (string, error)

	// PostMessage appends a user message to a thread and returns the
	// message ID. Must never be called while a run on the thread is
	// non-terminal.
	PostMessage(ctx context.Context, threadID, text string) (string, error)

	// CreateRun starts one asynchronous execution of the assistant against
	// the thread's current message history.
	CreateRun(ctx context.Context, threadID string) (string, error)

	// GetRunState retrieves the current run status, including pending tool
	// calls while the run is in requires_action.
	GetRunState(ctx context.Context, threadID, runID string) (*RunState, error)

	// SubmitToolOutputs answers all pending tool calls of a run. The remote
	// service requires exactly one output per tool call ID.
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolCallResult) error

	// GetLatestMessage returns the text of the most recent assistant
	// message on the thread.
	GetLatestMessage(ctx context.Context, threadID string) (string, error)
}
