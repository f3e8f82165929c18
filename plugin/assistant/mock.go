package assistant

import (
	"context"
	"fmt"
	"sync"
)

// StateStep is one scripted response of MockClient.GetRunState.
type StateStep struct {
	State *RunState
	Err   error
}

// MockClient is a scripted in-memory implementation of Client for testing.
// GetRunState consumes StateScript one step per call and repeats the last
// step once the script is exhausted.
type MockClient struct {
	mu sync.Mutex

	StateScript []StateStep
	stateCalls  int

	// LatestMessage is returned by GetLatestMessage.
	LatestMessage string

	// Optional injected failures, returned once per call until cleared.
	CreateThreadErr  error
	PostMessageErr   error
	CreateRunErr     error
	SubmitOutputsErr error
	LatestMessageErr error

	threadSeq int
	runSeq    int

	// Recorded activity.
	CreatedThreads []string
	PostedMessages []string
	CreatedRuns    []string
	Submitted      [][]ToolCallResult
	LatestFetches  int
}

// NewMockClient creates a mock that completes immediately with the given
// reply unless a script is installed.
func NewMockClient(reply string) *MockClient {
	return &MockClient{
		LatestMessage: reply,
		StateScript: []StateStep{
			{State: &RunState{Status: RunStatusCompleted}},
		},
	}
}

func (m *MockClient) CreateThread(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateThreadErr != nil {
		return "", m.CreateThreadErr
	}
	m.threadSeq++
	id := fmt.Sprintf("thread-%d", m.threadSeq)
	m.CreatedThreads = append(m.CreatedThreads, id)
	return id, nil
}

func (m *MockClient) PostMessage(ctx context.Context, threadID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PostMessageErr != nil {
		return "", m.PostMessageErr
	}
	m.PostedMessages = append(m.PostedMessages, text)
	return fmt.Sprintf("msg-%d", len(m.PostedMessages)), nil
}

func (m *MockClient) CreateRun(ctx context.Context, threadID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateRunErr != nil {
		return "", m.CreateRunErr
	}
	m.runSeq++
	id := fmt.Sprintf("run-%d", m.runSeq)
	m.CreatedRuns = append(m.CreatedRuns, id)
	return id, nil
}

func (m *MockClient) GetRunState(ctx context.Context, threadID, runID string) (*RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.StateScript) == 0 {
		return &RunState{Status: RunStatusCompleted}, nil
	}
	step := m.StateScript[min(m.stateCalls, len(m.StateScript)-1)]
	m.stateCalls++
	if step.Err != nil {
		return nil, step.Err
	}
	return step.State, nil
}

func (m *MockClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolCallResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitOutputsErr != nil {
		return m.SubmitOutputsErr
	}
	recorded := make([]ToolCallResult, len(outputs))
	copy(recorded, outputs)
	m.Submitted = append(m.Submitted, recorded)
	return nil
}

func (m *MockClient) GetLatestMessage(ctx context.Context, threadID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LatestMessageErr != nil {
		return "", m.LatestMessageErr
	}
	m.LatestFetches++
	return m.LatestMessage, nil
}

// StateCalls returns how many times GetRunState was polled.
func (m *MockClient) StateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateCalls
}

// Ensure MockClient implements Client.
var _ Client = (*MockClient)(nil)
