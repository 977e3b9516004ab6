// Package engine implements the background insight-processing engine:
// a scheduler that distributes analytical tasks across a bounded worker
// pool, tracks their lifecycle, aggregates results into a TTL-bounded
// store and fans them out to subscribers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/vigilix/insightd/internal/insight"
	"github.com/vigilix/insightd/internal/logger"
)

// ErrTerminated is returned by operations invoked after Terminate.
var ErrTerminated = errors.New("engine is terminated")

// Options configures a new Engine. Zero values fall back to defaults.
type Options struct {
	// Workers is the pool size. Values below 1 derive min(4, NumCPU)
	// with a floor of 1.
	Workers int
	// QueueCapacity bounds the pending task queue (default 50).
	QueueCapacity int
	// MaxAttempts is the per-task execution budget including the first
	// attempt (default 1, i.e. no retry).
	MaxAttempts int
	// Retention is the insight store TTL (default 24h).
	Retention time.Duration
	// CleanupInterval is the store eviction period (default 1h).
	CleanupInterval time.Duration
	// UrgentTimeout bounds ProcessUrgent (default 30s).
	UrgentTimeout time.Duration
	// Metrics, when non-nil, receives engine counters and gauges.
	Metrics *Metrics
}

// applyDefaults treats non-positive values as unset so a caller
// bypassing config validation cannot construct a zero-worker pool or
// a negative-capacity queue.
func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers()
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 50
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	if o.Retention <= 0 {
		o.Retention = 24 * time.Hour
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = time.Hour
	}
	if o.UrgentTimeout <= 0 {
		o.UrgentTimeout = 30 * time.Second
	}
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// activeTask is the bookkeeping entry for an in-flight task.
type activeTask struct {
	workerIndex int
	startedAt   time.Time
}

// SubmitRequest describes a task submission. Records are treated as
// opaque immutable input.
type SubmitRequest struct {
	Kind      insight.TaskKind
	Records   []insight.Record
	Timeframe insight.Timeframe
	Context   map[string]any
	Priority  insight.Priority
}

// Engine owns the task queue, worker pool, active task table, insight
// store and subscription registry. All scheduler state transitions are
// serialized under a single mutex; workers compute concurrently and
// report back through the poolHandler callbacks.
type Engine struct {
	log     *logger.Logger
	opts    Options
	metrics *Metrics

	store    *insightStore
	registry *subscriptionRegistry
	cleanup  *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	pool            *workerPool
	queue           *taskQueue
	active          map[string]activeTask
	slots           []string // task id per worker index; "" means idle
	waiters         map[string]chan struct{}
	terminated      bool
	totalTasks      int
	completedTasks  int
	failedTasks     int
	avgProcessingMs float64
	lastProcessedAt *time.Time
}

// New constructs an engine around the given computation function and
// starts its workers and the periodic store cleanup.
func New(compute insight.ComputeFunc, opts Options, log *logger.Logger) (*Engine, error) {
	if compute == nil {
		return nil, errors.New("compute function is required")
	}
	opts.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		log:      log,
		opts:     opts,
		metrics:  opts.Metrics,
		store:    newInsightStore(opts.Retention),
		registry: newSubscriptionRegistry(log),
		ctx:      ctx,
		cancel:   cancel,
		queue:    newTaskQueue(opts.QueueCapacity),
		active:   make(map[string]activeTask),
		slots:    make([]string, opts.Workers),
		waiters:  make(map[string]chan struct{}),
	}
	e.pool = newWorkerPool(ctx, opts.Workers, compute, e, log)

	e.cleanup = cron.New()
	if _, err := e.cleanup.AddFunc(fmt.Sprintf("@every %s", opts.CleanupInterval), e.runCleanup); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to schedule store cleanup: %w", err)
	}
	e.cleanup.Start()

	log.Info("insight engine started",
		logger.Field{Key: "workers", Value: opts.Workers},
		logger.Field{Key: "queue_capacity", Value: opts.QueueCapacity},
		logger.Field{Key: "retention", Value: opts.Retention.String()},
		logger.Field{Key: "cleanup_interval", Value: opts.CleanupInterval.String()})

	return e, nil
}

// Submit accepts a task for background processing and returns its id.
// It never blocks: the task is dispatched immediately when a worker is
// idle, queued otherwise. A full queue with no evictable low priority
// task rejects the submission with ErrQueueFull.
func (e *Engine) Submit(req SubmitRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		return "", ErrTerminated
	}

	priority := req.Priority
	if priority == "" {
		priority = insight.PriorityMedium
	}

	task := insight.Task{
		ID:          uuid.NewString(),
		Kind:        req.Kind,
		Records:     req.Records,
		Timeframe:   req.Timeframe,
		Context:     req.Context,
		Priority:    priority,
		SubmittedAt: time.Now(),
	}

	if err := e.scheduleLocked(&pendingTask{task: task}); err != nil {
		return "", err
	}

	e.totalTasks++
	e.metrics.recordTask(statusSubmitted)

	e.log.Debug("task submitted",
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "kind", Value: string(task.Kind)},
		logger.Field{Key: "priority", Value: string(task.Priority)})

	return task.ID, nil
}

// Subscribe registers an observer for newly produced insights. Stored
// insights matching the filter are replayed synchronously before
// Subscribe returns.
//
// Registration and replay are not atomic with respect to a concurrent
// task completion: an insight stored between the two may arrive once
// through the live notification and again in the replay batch.
// Delivery is at-least-once; consumers needing exactly-once must
// de-duplicate by insight ID.
func (e *Engine) Subscribe(notify NotifyFunc, filter *insight.Filter) (string, error) {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return "", ErrTerminated
	}
	e.mu.Unlock()

	id := e.registry.Subscribe(notify, filter)
	e.metrics.setSubscriptions(e.registry.Count())

	if existing := e.store.Query(filter, time.Now()); len(existing) > 0 {
		e.registry.Replay(id, existing)
	}

	return id, nil
}

// Unsubscribe removes an observer. Already dispatched notifications
// are unaffected.
func (e *Engine) Unsubscribe(id string) {
	e.registry.Unsubscribe(id)
	e.metrics.setSubscriptions(e.registry.Count())
}

// GetInsights returns stored insights matching the filter.
func (e *Engine) GetInsights(filter *insight.Filter) []insight.Insight {
	return e.store.Query(filter, time.Now())
}

// GetInsight returns the stored insight with the given id.
func (e *Engine) GetInsight(id string) (insight.Insight, bool) {
	return e.store.Get(id)
}

// ClearInsights wipes the store. Subscribers are not notified.
func (e *Engine) ClearInsights() {
	e.store.Clear()
	e.metrics.setInsightsStored(0)
}

// Stats returns a point-in-time snapshot of processing accounting.
func (e *Engine) Stats() insight.ProcessingStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	var last *time.Time
	if e.lastProcessedAt != nil {
		t := *e.lastProcessedAt
		last = &t
	}

	return insight.ProcessingStats{
		TotalTasks:              e.totalTasks,
		CompletedTasks:          e.completedTasks,
		FailedTasks:             e.failedTasks,
		AverageProcessingTimeMs: e.avgProcessingMs,
		LastProcessedAt:         last,
		QueueSize:               e.queue.Len(),
	}
}

// Terminate stops the engine unconditionally. Queued and in-flight
// tasks are dropped, not drained; workers receive a cancelled context.
// Idempotent.
func (e *Engine) Terminate() {
	e.mu.Lock()
	if e.terminated {
		e.mu.Unlock()
		return
	}
	e.terminated = true
	e.queue.Clear()
	for id, ch := range e.waiters {
		close(ch)
		delete(e.waiters, id)
	}
	e.active = make(map[string]activeTask)
	for i := range e.slots {
		e.slots[i] = ""
	}
	e.updateGaugesLocked()
	e.mu.Unlock()

	e.cancel()
	e.cleanup.Stop()

	e.log.Info("insight engine terminated")
}

// scheduleLocked dispatches to an idle worker when one exists, queues
// otherwise. Caller holds e.mu.
func (e *Engine) scheduleLocked(pt *pendingTask) error {
	if idx := e.idleWorkerLocked(); idx >= 0 {
		e.dispatchLocked(idx, pt)
		return nil
	}

	evicted, err := e.queue.Enqueue(pt)
	if err != nil {
		return err
	}
	if evicted != nil {
		e.metrics.recordTask(statusEvicted)
		e.log.Warn("queue at capacity, evicted oldest low priority task",
			logger.Field{Key: "evicted_task_id", Value: evicted.task.ID},
			logger.Field{Key: "queued_task_id", Value: pt.task.ID})
	}
	e.updateGaugesLocked()
	return nil
}

// dispatchLocked hands a task to the idle worker at idx and records it
// in the active task table. Caller holds e.mu.
func (e *Engine) dispatchLocked(idx int, pt *pendingTask) {
	e.slots[idx] = pt.task.ID
	e.active[pt.task.ID] = activeTask{workerIndex: idx, startedAt: time.Now()}
	e.pool.dispatch(idx, pt)
	e.updateGaugesLocked()

	e.log.Debug("task dispatched",
		logger.Field{Key: "task_id", Value: pt.task.ID},
		logger.Field{Key: "worker_index", Value: idx},
		logger.Field{Key: "attempt", Value: pt.attempts + 1})
}

func (e *Engine) idleWorkerLocked() int {
	for i, id := range e.slots {
		if id == "" {
			return i
		}
	}
	return -1
}

// fillIdleWorkersLocked pulls queued tasks onto every idle worker.
// Caller holds e.mu.
func (e *Engine) fillIdleWorkersLocked() {
	for {
		idx := e.idleWorkerLocked()
		if idx < 0 {
			return
		}
		pt, ok := e.queue.DequeueNext()
		if !ok {
			e.updateGaugesLocked()
			return
		}
		e.dispatchLocked(idx, pt)
	}
}

// onTaskComplete is the pool callback for a successful computation.
func (e *Engine) onTaskComplete(workerIndex int, pt *pendingTask, insights []insight.Insight) {
	e.mu.Lock()

	rec, ok := e.active[pt.task.ID]
	if !ok || e.terminated {
		e.mu.Unlock()
		e.log.Warn("ignoring stale task completion",
			logger.Field{Key: "task_id", Value: pt.task.ID},
			logger.Field{Key: "worker_index", Value: workerIndex})
		return
	}

	elapsed := time.Since(rec.startedAt)
	e.completedTasks++
	n := float64(e.completedTasks)
	e.avgProcessingMs = (e.avgProcessingMs*(n-1) + float64(elapsed.Milliseconds())) / n
	now := time.Now()
	e.lastProcessedAt = &now

	for _, ins := range insights {
		e.store.Put(ins)
	}

	delete(e.active, pt.task.ID)
	e.slots[workerIndex] = ""
	e.wakeLocked(pt.task.ID)
	e.fillIdleWorkersLocked()

	e.metrics.recordTask(statusCompleted)
	e.metrics.observeDuration(elapsed)
	e.updateGaugesLocked()
	e.mu.Unlock()

	e.log.Debug("task completed",
		logger.Field{Key: "task_id", Value: pt.task.ID},
		logger.Field{Key: "worker_index", Value: workerIndex},
		logger.Field{Key: "insights", Value: len(insights)},
		logger.Field{Key: "duration_ms", Value: elapsed.Milliseconds()})

	// Subscriber callbacks run outside the critical section so a slow
	// observer cannot stall dispatch.
	e.registry.NotifyAll(insights)
}

// onTaskError is the pool callback for a failed computation. The task
// is re-queued while its attempt budget lasts, then counted as failed.
func (e *Engine) onTaskError(workerIndex int, pt *pendingTask, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.active[pt.task.ID]; !ok || e.terminated {
		e.log.Warn("ignoring stale task error",
			logger.Field{Key: "task_id", Value: pt.task.ID},
			logger.Field{Key: "worker_index", Value: workerIndex})
		return
	}

	delete(e.active, pt.task.ID)
	e.slots[workerIndex] = ""
	e.retryOrFailLocked(pt, err, "task failed")
	e.fillIdleWorkersLocked()
	e.updateGaugesLocked()
}

// onUnitFault is the pool callback for a worker crash. The pool has
// already respawned the unit; the abandoned task is reconciled here
// with the same budget as an ordinary failure.
func (e *Engine) onUnitFault(workerIndex int, pt *pendingTask) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminated {
		return
	}

	e.log.Warn("worker fault, reconciling abandoned task",
		logger.Field{Key: "task_id", Value: pt.task.ID},
		logger.Field{Key: "worker_index", Value: workerIndex})

	delete(e.active, pt.task.ID)
	e.slots[workerIndex] = ""
	e.retryOrFailLocked(pt, errors.New("worker fault"), "task abandoned by crashed worker")
	e.fillIdleWorkersLocked()
	e.updateGaugesLocked()
}

// retryOrFailLocked spends one attempt and either re-schedules the
// task or records the final failure. Caller holds e.mu.
func (e *Engine) retryOrFailLocked(pt *pendingTask, err error, reason string) {
	pt.attempts++
	if pt.attempts < e.opts.MaxAttempts {
		e.metrics.recordTask(statusRetried)
		e.log.Warn(reason+", retrying",
			logger.Field{Key: "task_id", Value: pt.task.ID},
			logger.Field{Key: "attempt", Value: pt.attempts},
			logger.Field{Key: "max_attempts", Value: e.opts.MaxAttempts},
			logger.Field{Key: "cause", Value: err})
		if qerr := e.scheduleLocked(pt); qerr == nil {
			return
		}
		// Queue full on retry: fall through to the failure path.
	}

	e.failedTasks++
	e.metrics.recordTask(statusFailed)
	e.wakeLocked(pt.task.ID)

	e.log.Error(reason, err,
		logger.Field{Key: "task_id", Value: pt.task.ID},
		logger.Field{Key: "attempts", Value: pt.attempts})
}

// wakeLocked signals any waiter for the task's final outcome. Caller
// holds e.mu.
func (e *Engine) wakeLocked(taskID string) {
	if ch, ok := e.waiters[taskID]; ok {
		close(ch)
		delete(e.waiters, taskID)
	}
}

func (e *Engine) updateGaugesLocked() {
	e.metrics.setQueueDepth(e.queue.Len())
	busy := 0
	for _, id := range e.slots {
		if id != "" {
			busy++
		}
	}
	e.metrics.setWorkersBusy(busy)
	e.metrics.setInsightsStored(e.store.Len())
}

// runCleanup is invoked by the cron schedule.
func (e *Engine) runCleanup() {
	removed := e.store.Cleanup(time.Now())
	e.metrics.setInsightsStored(e.store.Len())

	if removed > 0 {
		e.log.Info("store cleanup completed",
			logger.Field{Key: "removed", Value: removed},
			logger.Field{Key: "remaining", Value: e.store.Len()})
	} else {
		e.log.Debug("store cleanup completed: nothing expired")
	}
}
