package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchPreservesOrder(t *testing.T) {
	d := NewDispatcher()
	d.Register("echo", func(_ context.Context, _ string, args json.RawMessage) (string, error) {
		return string(args), nil
	})
	d.Register("upper", func(_ context.Context, _ string, _ json.RawMessage) (string, error) {
		return "UPPER", nil
	})

	calls := []ToolCallRequest{
		{ID: "call-1", Name: "upper"},
		{ID: "call-2", Name: "echo", Arguments: json.RawMessage(`{"a":1}`)},
		{ID: "call-3", Name: "upper"},
	}

	results, err := d.Dispatch(context.Background(), "42", calls)
	require.NoError(t, err)
	require.Len(t, results, len(calls))

	assert.Equal(t, "call-1", results[0].ID)
	assert.Equal(t, "call-2", results[1].ID)
	assert.Equal(t, "call-3", results[2].ID)
	assert.Equal(t, `{"a":1}`, results[1].Output)
}

func TestDispatchUnknownToolAborts(t *testing.T) {
	d := NewDispatcher()
	d.Register("known", func(_ context.Context, _ string, _ json.RawMessage) (string, error) {
		return "ok", nil
	})

	results, err := d.Dispatch(context.Background(), "42", []ToolCallRequest{
		{ID: "call-1", Name: "known"},
		{ID: "call-2", Name: "mystery"},
	})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "mystery")
}

func TestDispatchNonCriticalFailureProducesErrorOutput(t *testing.T) {
	d := NewDispatcher()
	d.Register("flaky", func(_ context.Context, _ string, _ json.RawMessage) (string, error) {
		return "", errors.New("no contact details in payload")
	})
	d.Register("solid", func(_ context.Context, _ string, _ json.RawMessage) (string, error) {
		return "done", nil
	})

	results, err := d.Dispatch(context.Background(), "42", []ToolCallRequest{
		{ID: "call-1", Name: "flaky"},
		{ID: "call-2", Name: "solid"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(results[0].Output), &payload))
	assert.Equal(t, "error", payload["status"])
	assert.Contains(t, payload["message"], "no contact details")

	assert.Equal(t, "done", results[1].Output)
}

func TestDispatchCriticalFailureAborts(t *testing.T) {
	d := NewDispatcher()
	d.RegisterCritical("must-work", func(_ context.Context, _ string, _ json.RawMessage) (string, error) {
		return "", errors.New("backend down")
	})

	results, err := d.Dispatch(context.Background(), "42", []ToolCallRequest{
		{ID: "call-1", Name: "must-work"},
	})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "must-work")
}

func TestDispatchPassesUserID(t *testing.T) {
	d := NewDispatcher()
	d.Register("who", func(_ context.Context, userID string, _ json.RawMessage) (string, error) {
		return fmt.Sprintf("user=%s", userID), nil
	})

	results, err := d.Dispatch(context.Background(), "alice", []ToolCallRequest{{ID: "c1", Name: "who"}})
	require.NoError(t, err)
	assert.Equal(t, "user=alice", results[0].Output)
}

func TestNames(t *testing.T) {
	d := NewDispatcher()
	d.Register("zeta", nil)
	d.Register("alpha", nil)
	d.RegisterCritical("mid", nil)

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, d.Names())
}
