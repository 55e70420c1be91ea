// Copyright (c) 2026 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package callqueue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/fairrpc/api/scheduler"
	"go.uber.org/zap"
)

// swapPollInterval is how often Swap checks whether the retiring queue has
// drained.
const swapPollInterval = 5 * time.Millisecond

// Option customizes a Manager.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

type options struct {
	backoff bool
	logger  *zap.Logger
}

// WithBackoff makes Put fail fast with ErrBackoff or ErrQueueFull instead of
// blocking when the scheduler or the queue cannot take a call.
func WithBackoff(enabled bool) Option {
	return optionFunc(func(o *options) {
		o.backoff = enabled
	})
}

// WithLogger sets the logger for the Manager.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// generation is one queue and scheduler pair installed in a Manager.
type generation struct {
	version   int64
	queue     Queue
	scheduler scheduler.Scheduler

	// puts counts Put and Offer calls that may still add to queue.
	puts atomic.Int32

	done     chan struct{}
	doneOnce sync.Once
}

func newGeneration(version int64, q Queue, s scheduler.Scheduler) *generation {
	return &generation{
		version:   version,
		queue:     q,
		scheduler: s,
		done:      make(chan struct{}),
	}
}

func (g *generation) retire() {
	g.doneOnce.Do(func() { close(g.done) })
}

// Manager is the thread-safe holding area for admitted calls.
//
// Readers call Put or Offer and handlers call Take, all concurrently. The
// queue and scheduler are reached through two references: new calls go to
// the put generation while handlers drain the take generation. They differ
// only while Swap moves the Manager to a new pair.
type Manager struct {
	backoff bool
	logger  *zap.Logger

	putRef  atomic.Value // *generation
	takeRef atomic.Value // *generation
	version atomic.Int64

	// swapMu serializes Swap. mu guards closed and reference changes.
	swapMu   sync.Mutex
	mu       sync.Mutex
	closed   bool
	closedCh chan struct{}
}

// NewManager binds the queue and scheduler into a Manager.
func NewManager(q Queue, s scheduler.Scheduler, opts ...Option) *Manager {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt.apply(&o)
	}

	m := &Manager{
		backoff:  o.backoff,
		logger:   o.logger,
		closedCh: make(chan struct{}),
	}
	g := newGeneration(m.version.Inc(), q, s)
	m.putRef.Store(g)
	m.takeRef.Store(g)
	return m
}

// BackoffEnabled reports whether Put fails fast.
func (m *Manager) BackoffEnabled() bool { return m.backoff }

// Scheduler returns the scheduler new calls are accounted to.
func (m *Manager) Scheduler() scheduler.Scheduler {
	return m.putGeneration().scheduler
}

// Schedulers returns the schedulers of the take and put generations,
// without duplicates. They differ while a Swap is in progress, or after a
// Swap gave up because the Manager closed.
func (m *Manager) Schedulers() []scheduler.Scheduler {
	take, put := m.takeGeneration().scheduler, m.putGeneration().scheduler
	if take == put {
		return []scheduler.Scheduler{put}
	}
	return []scheduler.Scheduler{take, put}
}

// Version increments every time Swap installs a new pair.
func (m *Manager) Version() int64 {
	return m.putGeneration().version
}

// Cap is the capacity of the queue new calls go to.
func (m *Manager) Cap() int {
	return m.putGeneration().queue.Cap()
}

// Len is the number of queued calls.
func (m *Manager) Len() int {
	put, take := m.putGeneration(), m.takeGeneration()
	n := take.queue.Len()
	if put != take {
		n += put.queue.Len()
	}
	return n
}

func (m *Manager) putGeneration() *generation  { return m.putRef.Load().(*generation) }
func (m *Manager) takeGeneration() *generation { return m.takeRef.Load().(*generation) }

// acquirePut pins the current put generation so that Swap waits for the
// caller to finish adding to it.
func (m *Manager) acquirePut() (*generation, error) {
	for {
		if m.isClosed() {
			return nil, ErrClosed
		}
		g := m.putGeneration()
		g.puts.Inc()
		if m.putGeneration() == g {
			return g, nil
		}
		// Swap moved on between the load and the increment.
		g.puts.Dec()
	}
}

func (m *Manager) isClosed() bool {
	select {
	case <-m.closedCh:
		return true
	default:
		return false
	}
}

// prioritize asks the scheduler for the call's level and records it along
// with the scheduler.
func prioritize(g *generation, call Call) {
	call.SetPriorityLevel(g.scheduler.PriorityLevel(call))
	call.SetScheduler(g.scheduler)
}

// Put admits the call.
//
// With backoff enabled it never blocks: it returns ErrBackoff if the
// scheduler rejects the call and ErrQueueFull if the queue has no room.
// Otherwise it waits for room until ctx is done or the Manager closes.
func (m *Manager) Put(ctx context.Context, call Call) error {
	if m.backoff {
		return m.Offer(call)
	}

	g, err := m.acquirePut()
	if err != nil {
		return err
	}
	prioritize(g, call)
	for {
		err := g.queue.Put(ctx, g.done, call)
		g.puts.Dec()
		if err != errDone {
			return err
		}
		if m.isClosed() {
			return ErrClosed
		}
		if g, err = m.acquirePut(); err != nil {
			return err
		}
		// The old queue retired before taking the call: the new scheduler
		// owns it now.
		prioritize(g, call)
	}
}

// Offer admits the call without blocking. It returns ErrBackoff if backoff
// is enabled and the scheduler rejects the call, and ErrQueueFull if the
// queue has no room.
func (m *Manager) Offer(call Call) error {
	g, err := m.acquirePut()
	if err != nil {
		return err
	}
	defer g.puts.Dec()

	prioritize(g, call)
	if m.backoff && g.scheduler.ShouldBackOff(call) {
		return ErrBackoff
	}
	if !g.queue.Offer(call) {
		return ErrQueueFull
	}
	return nil
}

// Take blocks until a call is available. It returns ErrClosed once the
// Manager is closed, and ctx's error if ctx finishes first.
func (m *Manager) Take(ctx context.Context) (Call, error) {
	for {
		if m.isClosed() {
			return nil, ErrClosed
		}
		g := m.takeGeneration()
		call, err := g.queue.Take(ctx, g.done)
		if err == errDone {
			// Either retired by Swap, in which case the next generation is
			// already installed, or closed.
			continue
		}
		return call, err
	}
}

// Drain removes and returns every queued call without blocking. Servers
// drain a closed Manager to fail the calls no handler will run.
func (m *Manager) Drain() []Call {
	var calls []Call
	for _, g := range []*generation{m.takeGeneration(), m.putGeneration()} {
		for {
			call, ok := g.queue.Poll()
			if !ok {
				break
			}
			calls = append(calls, call)
		}
	}
	return calls
}

// Swap installs a new queue and scheduler.
//
// Calls admitted from now on go to q. Handlers keep serving the old queue
// until it is empty and no admission into it is still in flight; then they
// move to q and the old scheduler is stopped. Swap returns ErrClosed if the
// Manager closes first; the old scheduler is stopped then too, while the
// new one is left to whoever closed the Manager.
func (m *Manager) Swap(q Queue, s scheduler.Scheduler) error {
	m.swapMu.Lock()
	defer m.swapMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	old := m.putGeneration()
	next := newGeneration(m.version.Inc(), q, s)
	m.putRef.Store(next)
	m.mu.Unlock()

	ticker := time.NewTicker(swapPollInterval)
	defer ticker.Stop()
	for old.puts.Load() > 0 || old.queue.Len() > 0 {
		select {
		case <-ticker.C:
		case <-m.closedCh:
			return m.abandonSwap(old, s)
		}
	}

	m.mu.Lock()
	if m.closed {
		// Closed after the old queue drained, possibly by Drain.
		m.mu.Unlock()
		return m.abandonSwap(old, s)
	}
	m.takeRef.Store(next)
	old.retire()
	m.mu.Unlock()

	if old.scheduler != s {
		old.scheduler.Stop()
	}
	m.logger.Info("swapped call queue",
		zap.Int64("version", next.version),
		zap.Int("capacity", q.Cap()))
	return nil
}

// abandonSwap gives up on a Swap because the Manager closed. Handlers are
// gone and takeRef stays on old, so nobody else would stop its scheduler.
func (m *Manager) abandonSwap(old *generation, s scheduler.Scheduler) error {
	if old.scheduler != s {
		old.scheduler.Stop()
	}
	return ErrClosed
}

// Close wakes every blocked Put and Take. Queued calls stay in place for
// Drain. Close is idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.closedCh)
	m.putGeneration().retire()
	m.takeGeneration().retire()
}
