package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vigilix/insightd/internal/insight"
	"github.com/vigilix/insightd/internal/logger"
)

// ErrUrgentTimeout is returned when an urgent task does not reach a
// final outcome within the configured timeout. The task itself is not
// cancelled and may still complete asynchronously.
var ErrUrgentTimeout = errors.New("urgent processing timed out")

// Only insights at or above this confidence are returned by the urgent
// path.
const urgentMinConfidence = 70.0

// ProcessUrgent submits a high priority pattern analysis task over the
// given records and blocks the caller until the task reaches a final
// outcome or the timeout elapses. The wait is signalled through a
// per-task completion channel, not by polling.
//
// On success it returns the currently stored insights with confidence
// at or above 70 - the best available signal from the shared store,
// not strictly the output of this one task.
func (e *Engine) ProcessUrgent(ctx context.Context, records []insight.Record) ([]insight.Insight, error) {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return nil, ErrTerminated
	}

	task := insight.Task{
		ID:          uuid.NewString(),
		Kind:        insight.TaskPatternAnalysis,
		Records:     records,
		Timeframe:   insight.TimeframeWeek,
		Context:     map[string]any{"urgent": true},
		Priority:    insight.PriorityHigh,
		SubmittedAt: time.Now(),
	}

	if err := e.scheduleLocked(&pendingTask{task: task}); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.totalTasks++
	e.metrics.recordTask(statusSubmitted)

	// Register the waiter inside the same critical section as the
	// dispatch so the completion signal cannot be missed.
	done := make(chan struct{})
	e.waiters[task.ID] = done
	e.mu.Unlock()

	e.log.Info("urgent task submitted",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "records", Value: len(records)})

	timer := time.NewTimer(e.opts.UrgentTimeout)
	defer timer.Stop()

	select {
	case <-done:
		e.mu.Lock()
		terminated := e.terminated
		e.mu.Unlock()
		if terminated {
			return nil, ErrTerminated
		}

		minConf := urgentMinConfidence
		return e.store.Query(&insight.Filter{MinConfidence: &minConf}, time.Now()), nil

	case <-timer.C:
		e.dropWaiter(task.ID)
		e.log.Warn("urgent task timed out",
			logger.Field{Key: "task_id", Value: task.ID},
			logger.Field{Key: "timeout", Value: e.opts.UrgentTimeout.String()})
		return nil, ErrUrgentTimeout

	case <-ctx.Done():
		e.dropWaiter(task.ID)
		return nil, ctx.Err()
	}
}

func (e *Engine) dropWaiter(taskID string) {
	e.mu.Lock()
	delete(e.waiters, taskID)
	e.mu.Unlock()
}
