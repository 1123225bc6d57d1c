/*
DESCRIPTION
  In-process task dispatcher with at-least-once delivery.

LICENSE
  Copyright (C) 2026 the OpenConf project.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Package dispatch provides fire-and-forget dispatch of background
// work, decoupled from the request path. Delivery is at least once: a
// failed delivery is retried with backoff until the attempt limit,
// so handlers must be idempotent. Handler failures are never
// propagated to the dispatching request, which has already completed.
package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Defaults, overridable via options.
const (
	defaultWorkers   = 2
	defaultQueueSize = 64
	defaultAttempts  = 3
	defaultBackoff   = 5 * time.Second
)

// Task is a unit of background work: a kind naming the registered
// handler and string parameters, mirroring a task-queue payload.
type Task struct {
	ID     string            // Unique task ID.
	Kind   string            // Handler name.
	Params map[string]string // Handler parameters.
}

// HandlerFunc handles a delivered task. Returning an error requests
// redelivery.
type HandlerFunc func(ctx context.Context, t Task) error

// Option is a functional option supplied to NewDispatcher.
type Option func(*Dispatcher)

// WithWorkers sets the number of delivery workers.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) { d.workers = n }
}

// WithQueueSize sets the task queue capacity.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) { d.queue = make(chan delivery, n) }
}

// WithAttempts sets the maximum number of delivery attempts per task.
func WithAttempts(n int) Option {
	return func(d *Dispatcher) { d.attempts = n }
}

// WithBackoff sets the delay before a failed task is redelivered.
func WithBackoff(backoff time.Duration) Option {
	return func(d *Dispatcher) { d.backoff = backoff }
}

// delivery pairs a task with its attempt count.
type delivery struct {
	task    Task
	attempt int
}

// Dispatcher delivers tasks to registered handlers using a pool of
// workers.
type Dispatcher struct {
	mutex    sync.RWMutex
	handlers map[string]HandlerFunc
	queue    chan delivery
	workers  int
	attempts int
	backoff  time.Duration
	quit     chan struct{}
	wg       sync.WaitGroup // Workers.
	pending  sync.WaitGroup // Tasks not yet finally handled or dropped.
}

// NewDispatcher returns a new Dispatcher with the supplied options
// applied. Start must be called before tasks are delivered.
func NewDispatcher(options ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		workers:  defaultWorkers,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		quit:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(d)
	}
	if d.queue == nil {
		d.queue = make(chan delivery, defaultQueueSize)
	}
	return d
}

// Register registers the handler for the given task kind, replacing
// any previous handler of that kind.
func (d *Dispatcher) Register(kind string, h HandlerFunc) {
	d.mutex.Lock()
	d.handlers[kind] = h
	d.mutex.Unlock()
}

// Start starts the delivery workers. The context bounds handler
// execution.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Stop stops the delivery workers. Queued tasks are not drained;
// like a dropped queue delivery, they are lost to this process.
func (d *Dispatcher) Stop() {
	close(d.quit)
	d.wg.Wait()
}

// Dispatch enqueues a task of the given kind and returns its ID. It
// fails if no handler is registered for the kind. Dispatch never
// waits for delivery.
func (d *Dispatcher) Dispatch(kind string, params map[string]string) (string, error) {
	d.mutex.RLock()
	_, ok := d.handlers[kind]
	d.mutex.RUnlock()
	if !ok {
		return "", errors.Errorf("no handler registered for task kind %q", kind)
	}
	t := Task{ID: uuid.NewString(), Kind: kind, Params: params}
	d.pending.Add(1)
	select {
	case d.queue <- delivery{task: t, attempt: 1}:
		return t.ID, nil
	case <-d.quit:
		d.pending.Done()
		return "", errors.New("dispatcher stopped")
	}
}

// Wait blocks until every dispatched task has been finally handled
// or dropped. Used in testing and during orderly shutdown.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// worker delivers tasks until the dispatcher is stopped.
func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case dl := <-d.queue:
			d.deliver(ctx, dl)
		case <-d.quit:
			return
		}
	}
}

// deliver invokes the handler for a task, scheduling a redelivery
// upon failure until the attempt limit is reached.
func (d *Dispatcher) deliver(ctx context.Context, dl delivery) {
	d.mutex.RLock()
	h := d.handlers[dl.task.Kind]
	d.mutex.RUnlock()

	err := h(ctx, dl.task)
	if err == nil {
		d.pending.Done()
		return
	}
	err = errors.Wrapf(err, "task %s (%s) attempt %d failed", dl.task.ID, dl.task.Kind, dl.attempt)
	if dl.attempt >= d.attempts {
		log.Printf("dropping %v", err)
		d.pending.Done()
		return
	}
	log.Printf("will retry %v", err)
	time.AfterFunc(d.backoff, func() {
		select {
		case d.queue <- delivery{task: dl.task, attempt: dl.attempt + 1}:
		case <-d.quit:
			d.pending.Done()
		}
	})
}
