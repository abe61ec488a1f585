// Package wp is a keyed worker pool. Tasks submitted under the same key run
// one at a time, in submission order, on the same worker.
package wp

import (
	"fmt"
	"sync"

	"github.com/segmentio/fasthash/fnv1a"
	"go.uber.org/zap"
)

type Pool struct {
	maxWorkers int
	taskQueues []chan func()
	wg         sync.WaitGroup
	logger     *zap.Logger

	mu      sync.RWMutex
	stopped bool
}

type Option func(*Pool)

// WithLogger sets the logger used to report task panics.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l.Named("wp")
		}
	}
}

func NewPool(maxWorkers int, queueBuffer int, opts ...Option) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueBuffer < 1 {
		queueBuffer = 1
	}

	p := &Pool{
		maxWorkers: maxWorkers,
		taskQueues: make([]chan func(), maxWorkers),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < maxWorkers; i++ {
		p.taskQueues[i] = make(chan func(), queueBuffer)
		p.wg.Add(1)
		go p.startWorker(i, p.taskQueues[i])
	}

	return p
}

func (p *Pool) startWorker(idx int, queue chan func()) {
	defer p.wg.Done()
	for task := range queue {
		p.run(idx, task)
	}
}

// run isolates a panicking task so the worker keeps serving its key.
func (p *Pool) run(idx int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				zap.Int("worker", idx),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	task()
}

// Submit queues task on the worker owning key. It blocks while that worker's
// queue is full and reports false once the pool has been stopped.
func (p *Pool) Submit(key string, task func()) bool {
	if task == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	idx := fnv1a.HashString64(key) % uint64(p.maxWorkers)
	p.taskQueues[idx] <- task
	return true
}

// Stop refuses new tasks, drains the queued ones and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, q := range p.taskQueues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
