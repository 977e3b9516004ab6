package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilix/insightd/internal/insight"
)

// neverCompletes blocks until the engine is terminated.
func neverCompletes(ctx context.Context, task insight.Task) ([]insight.Insight, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestProcessUrgent_ReturnsHighConfidenceInsights(t *testing.T) {
	compute := func(ctx context.Context, task insight.Task) ([]insight.Insight, error) {
		return []insight.Insight{
			testInsight("strong", 90),
			testInsight("weak", 50),
		}, nil
	}

	eng := newTestEngine(t, compute, Options{
		Workers:       1,
		QueueCapacity: 10,
	})

	got, err := eng.ProcessUrgent(context.Background(), []insight.Record{{ID: "r1"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "strong", got[0].ID)
}

func TestProcessUrgent_TimesOut(t *testing.T) {
	eng := newTestEngine(t, neverCompletes, Options{
		Workers:       1,
		QueueCapacity: 10,
		UrgentTimeout: 150 * time.Millisecond,
	})

	start := time.Now()
	_, err := eng.ProcessUrgent(context.Background(), []insight.Record{{ID: "r1"}})
	assert.ErrorIs(t, err, ErrUrgentTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProcessUrgent_HonorsCallerContext(t *testing.T) {
	eng := newTestEngine(t, neverCompletes, Options{
		Workers:       1,
		QueueCapacity: 10,
		UrgentTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := eng.ProcessUrgent(ctx, []insight.Record{{ID: "r1"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessUrgent_RejectedWhenQueueFull(t *testing.T) {
	eng := newTestEngine(t, neverCompletes, Options{
		Workers:       1,
		QueueCapacity: 1,
	})

	// Occupy the worker and fill the queue with a non-evictable task.
	_, err := eng.Submit(SubmitRequest{Kind: insight.TaskPatternAnalysis, Priority: insight.PriorityMedium})
	require.NoError(t, err)
	_, err = eng.Submit(SubmitRequest{Kind: insight.TaskPatternAnalysis, Priority: insight.PriorityMedium})
	require.NoError(t, err)

	_, err = eng.ProcessUrgent(context.Background(), []insight.Record{{ID: "r1"}})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestProcessUrgent_TerminatedEngine(t *testing.T) {
	eng := newTestEngine(t, oneInsightPerTask(0, 80), Options{
		Workers:       1,
		QueueCapacity: 10,
	})

	eng.Terminate()
	_, err := eng.ProcessUrgent(context.Background(), []insight.Record{{ID: "r1"}})
	assert.ErrorIs(t, err, ErrTerminated)
}
