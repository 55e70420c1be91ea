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

// Package decay implements a fair scheduler that ranks callers by their
// recent call volume.
//
// Every call is counted against its caller. Once per period a sweep decays
// each caller's volume,
//
//	volume = volume*factor + callsSinceLastSweep
//
// and ranks callers by their share of the total: light and new callers get
// level 0, heavy callers are pushed to higher, less privileged levels.
// Levels only change at sweeps, so a caller that suddenly bursts keeps its
// level for up to one period.
//
// With BackoffThresholds, the scheduler also tracks a moving average of
// processing time per level and asks callers to back off while their
// level's average exceeds its threshold.
package decay

import (
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/fairrpc/api/scheduler"
	"go.uber.org/fairrpc/internal/clock"
	"go.uber.org/zap"
)

// Scheduler is a scheduler.Scheduler ranking callers by decayed call volume.
type Scheduler struct {
	levels            int
	period            time.Duration
	decayFactor       float64
	thresholds        []float64
	backoffThresholds []time.Duration
	evictionThreshold float64

	table      *identityTable
	totalCalls atomic.Int64

	// Published by the sweep.
	schedule        atomic.Value // map[string]int
	volumes         atomic.Value // map[string]float64
	totalVolume     atomic.Float64
	avgResponse     []atomic.Float64 // nanoseconds
	lastWindowCount []atomic.Int64

	// Accumulated by handlers between sweeps.
	windowCount []atomic.Int64
	windowTotal []atomic.Int64 // nanoseconds

	clock   clock.Clock
	logger  *zap.Logger
	metrics metrics

	stopOnce sync.Once
	stop     chan struct{}
	stopped  chan struct{}
}

var _ scheduler.Scheduler = (*Scheduler)(nil)

// New builds a Scheduler and starts its sweep. Stop it to release the sweep
// goroutine.
func New(opts ...Option) (*Scheduler, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.thresholds == nil {
		o.thresholds = DefaultThresholds(o.levels)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		levels:            o.levels,
		period:            o.period,
		decayFactor:       o.decayFactor,
		thresholds:        o.thresholds,
		backoffThresholds: o.backoffThresholds,
		evictionThreshold: o.evictionThreshold,
		table:             newIdentityTable(),
		avgResponse:       make([]atomic.Float64, o.levels),
		lastWindowCount:   make([]atomic.Int64, o.levels),
		windowCount:       make([]atomic.Int64, o.levels),
		windowTotal:       make([]atomic.Int64, o.levels),
		clock:             o.clock,
		logger:            o.logger,
		metrics:           newMetrics(o.scope, o.levels),
		stop:              make(chan struct{}),
		stopped:           make(chan struct{}),
	}
	s.schedule.Store(map[string]int{})
	s.volumes.Store(map[string]float64{})

	go s.run()
	return s, nil
}

// Levels is the number of priority levels.
func (s *Scheduler) Levels() int { return s.levels }

// PriorityLevel counts the call against its caller and returns the level the
// caller was given at the last sweep. Callers unseen at the last sweep are at
// level 0.
func (s *Scheduler) PriorityLevel(call scheduler.Schedulable) int {
	identity := call.CallerIdentity()
	s.table.increment(identity)
	s.totalCalls.Inc()
	return s.schedule.Load().(map[string]int)[identity]
}

// ShouldBackOff reports whether the average processing time at the call's
// level exceeds that level's backoff threshold.
func (s *Scheduler) ShouldBackOff(call scheduler.Schedulable) bool {
	if len(s.backoffThresholds) == 0 {
		return false
	}
	level := s.clamp(call.PriorityLevel())
	avg := time.Duration(s.avgResponse[level].Load())
	if avg > s.backoffThresholds[level] {
		s.logger.Debug("asking caller to back off",
			zap.String("identity", call.CallerIdentity()),
			zap.Int("priority", level),
			zap.Duration("avgResponseTime", avg),
			zap.Duration("threshold", s.backoffThresholds[level]))
		return true
	}
	return false
}

// AddResponseTime records the processing time of a call completed at the
// given level.
func (s *Scheduler) AddResponseTime(_ scheduler.Schedulable, priority int, processing time.Duration) {
	level := s.clamp(priority)
	s.windowCount[level].Inc()
	s.windowTotal[level].Add(int64(processing))
}

// Stop halts the sweep. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.stopped
}

// CallVolumeSummary returns the decayed call volume of every caller known
// at the last sweep.
func (s *Scheduler) CallVolumeSummary() map[string]float64 {
	volumes := s.volumes.Load().(map[string]float64)
	out := make(map[string]float64, len(volumes))
	for k, v := range volumes {
		out[k] = v
	}
	return out
}

// TotalCallVolume is the sum of decayed call volumes at the last sweep.
func (s *Scheduler) TotalCallVolume() float64 { return s.totalVolume.Load() }

// TotalCalls is the number of calls counted since the Scheduler started.
func (s *Scheduler) TotalCalls() int64 { return s.totalCalls.Load() }

// UniqueCallers is the number of callers known at the last sweep.
func (s *Scheduler) UniqueCallers() int {
	return len(s.volumes.Load().(map[string]float64))
}

// AverageResponseTimes returns the moving average of processing time per
// level, as of the last sweep.
func (s *Scheduler) AverageResponseTimes() []time.Duration {
	out := make([]time.Duration, s.levels)
	for i := range out {
		out[i] = time.Duration(s.avgResponse[i].Load())
	}
	return out
}

// ResponseTimeCounts returns the number of calls completed per level during
// the last full period.
func (s *Scheduler) ResponseTimeCounts() []int64 {
	out := make([]int64, s.levels)
	for i := range out {
		out[i] = s.lastWindowCount[i].Load()
	}
	return out
}

func (s *Scheduler) clamp(level int) int {
	if level < 0 {
		return 0
	}
	if level >= s.levels {
		return s.levels - 1
	}
	return level
}

func (s *Scheduler) run() {
	defer close(s.stopped)
	for {
		timer := s.clock.Timer(s.period)
		select {
		case <-timer.C():
			s.sweep()
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

// sweep decays call volumes, recomputes the schedule and folds the last
// period's processing times into the per-level averages.
func (s *Scheduler) sweep() {
	volumes, calls := s.table.decay(s.decayFactor, s.evictionThreshold)

	var total float64
	for _, v := range volumes {
		total += v
	}
	schedule := make(map[string]int, len(volumes))
	for identity, v := range volumes {
		if level := s.levelFor(v, total); level > 0 {
			schedule[identity] = level
		}
	}

	s.volumes.Store(volumes)
	s.totalVolume.Store(total)
	s.schedule.Store(schedule)
	s.updateResponseTimes()
	s.metrics.publish(s)

	s.logger.Debug("decayed call volumes",
		zap.Int64("calls", calls),
		zap.Int("callers", len(volumes)),
		zap.Float64("totalVolume", total))
}

// levelFor maps a caller's volume to a level by its share of the total. A
// larger share never maps to a smaller level.
func (s *Scheduler) levelFor(volume, total float64) int {
	if total <= 0 {
		return 0
	}
	share := volume / total
	for level := s.levels - 1; level > 0; level-- {
		if share >= s.thresholds[level-1] {
			return level
		}
	}
	return 0
}

func (s *Scheduler) updateResponseTimes() {
	for i := 0; i < s.levels; i++ {
		n := s.windowCount[i].Swap(0)
		total := s.windowTotal[i].Swap(0)
		prev := s.avgResponse[i].Load()

		var next float64
		switch {
		case n > 0 && prev == 0:
			next = float64(total) / float64(n)
		case n > 0:
			next = s.decayFactor*prev + (1-s.decayFactor)*float64(total)/float64(n)
		default:
			// Idle levels recover so that backoff eventually lifts.
			next = prev * s.decayFactor
			if next < float64(time.Microsecond) {
				next = 0
			}
		}
		s.avgResponse[i].Store(next)
		s.lastWindowCount[i].Store(n)
	}
}
