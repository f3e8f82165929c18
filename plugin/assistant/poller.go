package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// PollerConfig bounds one run's polling schedule and failure budget.
type PollerConfig struct {
	// BaseInterval is the initial wait between polls (default: 1s).
	BaseInterval time.Duration
	// MaxInterval caps the exponential backoff (default: 8s).
	MaxInterval time.Duration
	// RunTimeout is the wall-clock ceiling per run; exceeding it forces a
	// local timeout even if the remote run is still nominally progressing
	// (default: 90s).
	RunTimeout time.Duration
	// RetryBudget is the number of transient client failures tolerated per
	// run before the run is failed locally with a timeout (default: 5).
	RetryBudget int
}

func (c PollerConfig) normalized() PollerConfig {
	if c.BaseInterval <= 0 {
		c.BaseInterval = time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 8 * time.Second
	}
	if c.MaxInterval < c.BaseInterval {
		c.MaxInterval = c.BaseInterval
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 90 * time.Second
	}
	if c.RetryBudget <= 0 {
		c.RetryBudget = 5
	}
	return c
}

// Poller drives a single run from creation to a terminal state using
// bounded polling with exponential backoff. One Poller is safe for
// concurrent use; all per-run state lives in Poll's frame.
type Poller struct {
	client     Client
	dispatcher *Dispatcher
	cfg        PollerConfig

	// OnTransition, when set, observes every run status change.
	OnTransition func(from, to RunStatus)
}

// NewPoller creates a poller over the given client and tool dispatcher.
func NewPoller(client Client, dispatcher *Dispatcher, cfg PollerConfig) *Poller {
	return &Poller{
		client:     client,
		dispatcher: dispatcher,
		cfg:        cfg.normalized(),
	}
}

// Poll polls the run until it completes. It returns nil on completion and a
// *TurnError otherwise. Tool-call results are cached by call ID within the
// run, so a replayed requires_action state never re-executes handlers.
func (p *Poller) Poll(ctx context.Context, userID, threadID, runID string) error {
	deadline := time.Now().Add(p.cfg.RunTimeout)
	interval := p.cfg.BaseInterval
	retriesLeft := p.cfg.RetryBudget
	last := RunStatusQueued
	handled := make(map[string]ToolCallResult)

	logger := slog.With("user_id", userID, "thread_id", threadID, "run_id", runID)

	for {
		if err := ctx.Err(); err != nil {
			return turnErr(TurnErrorTimeout, err)
		}
		if time.Now().After(deadline) {
			logger.Warn("run wall-clock budget exhausted", "budget", p.cfg.RunTimeout)
			return turnErr(TurnErrorTimeout, fmt.Errorf("run exceeded wall-clock budget of %s", p.cfg.RunTimeout))
		}

		state, err := p.client.GetRunState(ctx, threadID, runID)
		if err != nil {
			if terr := p.retryOrFail(ctx, err, &retriesLeft, interval, logger); terr != nil {
				return terr
			}
			interval = nextBackoff(interval, p.cfg.BaseInterval, p.cfg.MaxInterval)
			continue
		}

		if state.Status != last {
			logger.Debug("run status changed", "from", last, "to", state.Status)
			if p.OnTransition != nil {
				p.OnTransition(last, state.Status)
			}
			last = state.Status
			// Backoff resets on every state change.
			interval = p.cfg.BaseInterval
		}

		switch state.Status {
		case RunStatusCompleted:
			return nil

		case RunStatusFailed, RunStatusCancelled, RunStatusExpired:
			logger.Warn("run reached terminal failure state", "status", state.Status)
			return turnErr(TurnErrorRemoteFatal, fmt.Errorf("run ended with status %s", state.Status))

		case RunStatusRequiresAction:
			outputs, terr := p.resolveActionRound(ctx, userID, state.ToolCalls, handled, logger)
			if terr != nil {
				return terr
			}
			if err := p.client.SubmitToolOutputs(ctx, threadID, runID, outputs); err != nil {
				if terr := p.retryOrFail(ctx, err, &retriesLeft, interval, logger); terr != nil {
					return terr
				}
				interval = nextBackoff(interval, p.cfg.BaseInterval, p.cfg.MaxInterval)
				continue
			}
			logger.Info("tool outputs submitted", "count", len(outputs))
			interval = p.cfg.BaseInterval
			if err := sleepCtx(ctx, interval); err != nil {
				return turnErr(TurnErrorTimeout, err)
			}

		default: // queued, in_progress
			if err := sleepCtx(ctx, interval); err != nil {
				return turnErr(TurnErrorTimeout, err)
			}
			interval = nextBackoff(interval, p.cfg.BaseInterval, p.cfg.MaxInterval)
		}
	}
}

// resolveActionRound produces exactly one output per pending tool call,
// dispatching only the calls not already handled in this run.
func (p *Poller) resolveActionRound(ctx context.Context, userID string, calls []ToolCallRequest, handled map[string]ToolCallResult, logger *slog.Logger) ([]ToolCallResult, *TurnError) {
	fresh := make([]ToolCallRequest, 0, len(calls))
	for _, call := range calls {
		if _, done := handled[call.ID]; !done {
			fresh = append(fresh, call)
		}
	}

	if len(fresh) > 0 {
		logger.Info("run requires action", "tool_calls", len(fresh))
		results, err := p.dispatcher.Dispatch(ctx, userID, fresh)
		if err != nil {
			logger.Warn("action round aborted", "error", err)
			return nil, turnErr(TurnErrorToolFailure, err)
		}
		for _, result := range results {
			handled[result.ID] = result
		}
	}

	outputs := make([]ToolCallResult, 0, len(calls))
	for _, call := range calls {
		outputs = append(outputs, handled[call.ID])
	}
	return outputs, nil
}

// retryOrFail applies the retry policy to a classified client error. A nil
// return means the error was transient, the backoff interval was waited
// out, and the caller should retry; otherwise the turn error is terminal.
func (p *Poller) retryOrFail(ctx context.Context, err error, retriesLeft *int, interval time.Duration, logger *slog.Logger) *TurnError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return turnErr(TurnErrorTimeout, err)
	}
	if !IsTransient(err) {
		logger.Warn("fatal client error during polling", "error", err)
		return turnErr(TurnErrorRemoteFatal, err)
	}

	*retriesLeft--
	if *retriesLeft < 0 {
		logger.Warn("transient retry budget exhausted", "budget", p.cfg.RetryBudget, "error", err)
		return turnErr(TurnErrorTimeout, fmt.Errorf("transient retry budget exhausted: %w", err))
	}

	logger.Debug("transient client error, retrying",
		"retries_left", *retriesLeft,
		"wait", interval,
		"error", err)
	if werr := sleepCtx(ctx, interval); werr != nil {
		return turnErr(TurnErrorTimeout, werr)
	}
	return nil
}

// retryTransient runs fn with the poller's backoff schedule for calls made
// outside the polling loop (thread creation, message post, reply fetch).
func (p *Poller) retryTransient(ctx context.Context, fn func() error) error {
	interval := p.cfg.BaseInterval
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) || attempt >= p.cfg.RetryBudget {
			return err
		}
		if werr := sleepCtx(ctx, interval); werr != nil {
			return werr
		}
		interval = nextBackoff(interval, p.cfg.BaseInterval, p.cfg.MaxInterval)
	}
}

// nextBackoff doubles the interval up to max.
func nextBackoff(current, base, max time.Duration) time.Duration {
	if current < base {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

// sleepCtx waits for d without occupying a worker, honoring cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
