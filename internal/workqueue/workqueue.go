// Package workqueue provides the two executors the collaboration core runs
// on: a small bounded pool for transport I/O and message decoding, and a
// per-document serial queue that stands in for the host editor's
// document-owning thread. All buffer mutation for one document goes through
// one serial queue, which preserves the one-mutation-at-a-time guarantee
// without depending on any GUI framework's threading model.
package workqueue

import (
	"log"
	"sync"
)

// Pool is a fixed-size worker pool. Submit never blocks the caller; when the
// queue is full the task is rejected so a slow consumer cannot stall the
// transport.
type Pool struct {
	tasks   chan func()
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewPool starts workers goroutines consuming a queue of queueSize tasks.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	p := &Pool{tasks: make(chan func(), queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Submit queues a task for execution. Returns ErrQueueFull when the queue is
// saturated and ErrStopped after Stop.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	select {
	case p.tasks <- task:
		p.mu.Unlock()
		return nil
	default:
		p.mu.Unlock()
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight tasks. Idempotent.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// Serial is a single-consumer task queue. Tasks run strictly in submission
// order on one goroutine.
type Serial struct {
	tasks   chan func()
	done    chan struct{}
	mu      sync.Mutex
	stopped bool
}

// NewSerial starts the queue's sole worker.
func NewSerial(queueSize int) *Serial {
	if queueSize <= 0 {
		queueSize = 128
	}
	s := &Serial{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for task := range s.tasks {
			task()
		}
	}()
	return s
}

// Submit enqueues a task. A full queue drops the task with a logged warning
// rather than blocking; callers treat scheduling as fire-and-forget.
func (s *Serial) Submit(task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	select {
	case s.tasks <- task:
		return nil
	default:
		log.Printf("workqueue: serial queue full, task dropped")
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for the worker to drain. Idempotent.
func (s *Serial) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.tasks)
	s.mu.Unlock()
	<-s.done
}
