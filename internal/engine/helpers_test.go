package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vigilix/insightd/internal/insight"
	"github.com/vigilix/insightd/internal/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func newTestEngine(t *testing.T, compute insight.ComputeFunc, opts Options) *Engine {
	t.Helper()
	eng, err := New(compute, opts, newTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(eng.Terminate)
	return eng
}

func testInsight(id string, confidence float64) insight.Insight {
	return insight.Insight{
		ID:          id,
		Kind:        insight.KindPattern,
		Title:       "test insight",
		Confidence:  confidence,
		Severity:    insight.SeverityLow,
		GeneratedAt: time.Now(),
	}
}

// oneInsightPerTask returns a compute function producing a single
// insight keyed by the task id, after an optional delay.
func oneInsightPerTask(delay time.Duration, confidence float64) insight.ComputeFunc {
	return func(ctx context.Context, task insight.Task) ([]insight.Insight, error) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return []insight.Insight{testInsight(task.ID, confidence)}, nil
	}
}

func queuedTask(id string, priority insight.Priority) *pendingTask {
	return &pendingTask{task: insight.Task{
		ID:          id,
		Kind:        insight.TaskPatternAnalysis,
		Priority:    priority,
		SubmittedAt: time.Now(),
	}}
}
