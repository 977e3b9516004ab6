package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/vigilix/insightd/internal/insight"
	"github.com/vigilix/insightd/internal/logger"
)

// poolHandler receives completion signals from workers. The engine
// implements it; every method is invoked from a worker goroutine.
type poolHandler interface {
	onTaskComplete(workerIndex int, p *pendingTask, insights []insight.Insight)
	onTaskError(workerIndex int, p *pendingTask, err error)
	onUnitFault(workerIndex int, p *pendingTask)
}

// worker is a single computation unit. It processes at most one task
// at a time, in dispatch order.
type worker struct {
	index  int
	taskCh chan *pendingTask
}

// workerPool owns a fixed set of computation units. A unit that
// panics while computing is reported as a unit fault and respawned;
// the pool never retries the task itself.
type workerPool struct {
	compute insight.ComputeFunc
	handler poolHandler
	ctx     context.Context
	log     *logger.Logger

	mu      sync.RWMutex // guards workers; respawn races with dispatch
	workers []*worker
}

func newWorkerPool(ctx context.Context, size int, compute insight.ComputeFunc, handler poolHandler, log *logger.Logger) *workerPool {
	p := &workerPool{
		compute: compute,
		handler: handler,
		ctx:     ctx,
		log:     log,
		workers: make([]*worker, size),
	}
	for i := 0; i < size; i++ {
		p.spawn(i)
	}
	return p
}

// spawn creates or replaces the unit at index and starts its loop.
func (p *workerPool) spawn(index int) {
	w := &worker{
		index: index,
		// Capacity 1 so dispatch never blocks the engine's critical
		// section; the engine only dispatches to idle units.
		taskCh: make(chan *pendingTask, 1),
	}

	p.mu.Lock()
	p.workers[index] = w
	p.mu.Unlock()

	p.log.Debug("worker spawned", logger.Field{Key: "worker_index", Value: index})
	go p.run(w)
}

// dispatch hands a task to the unit at index. The caller must ensure
// the unit is idle.
func (p *workerPool) dispatch(index int, pt *pendingTask) {
	p.mu.RLock()
	w := p.workers[index]
	p.mu.RUnlock()

	w.taskCh <- pt
}

// run is the unit loop. A panic during computation is treated as a
// unit fault: the fault is reported, the loop exits and a fresh unit
// replaces it at the same index.
func (p *workerPool) run(w *worker) {
	var current *pendingTask

	defer func() {
		r := recover()
		if r == nil {
			return
		}

		p.log.Error("worker crashed, respawning",
			fmt.Errorf("panic: %v", r),
			logger.Field{Key: "worker_index", Value: w.index})

		faulted := current
		if p.ctx.Err() == nil {
			p.spawn(w.index)
		}
		if faulted != nil {
			p.handler.onUnitFault(w.index, faulted)
		}
	}()

	for {
		select {
		case pt := <-w.taskCh:
			current = pt
			insights, err := p.compute(p.ctx, pt.task)
			current = nil

			if err != nil {
				p.handler.onTaskError(w.index, pt, err)
			} else {
				p.handler.onTaskComplete(w.index, pt, insights)
			}

		case <-p.ctx.Done():
			return
		}
	}
}
