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
	"fmt"
)

// Fair is a Queue with one FIFO sub-queue per priority level.
//
// Handlers scan the sub-queues starting from the level picked by a weighted
// round-robin multiplexer, so privileged levels get most of the turns while
// every level is served at least once per round.
type Fair struct {
	levels []chan Call
	// avail holds one token per queued call. A token is added after its call
	// is queued and removed before a call is dequeued, so a goroutine holding
	// a token always finds a call.
	avail chan struct{}
	mux   *weightedRoundRobin
}

var _ Queue = (*Fair)(nil)

// NewFair splits capacity evenly across levels sub-queues, served with the
// default weights: level i gets 2^(levels-1-i) turns per round.
func NewFair(levels, capacity int) (*Fair, error) {
	return NewFairWithWeights(capacity, DefaultWeights(levels))
}

// NewFairWithWeights builds a Fair queue with one level per weight.
func NewFairWithWeights(capacity int, weights []int) (*Fair, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("fair call queue needs at least one priority level")
	}
	if capacity < len(weights) {
		return nil, fmt.Errorf("fair call queue capacity %d is smaller than its %d levels", capacity, len(weights))
	}
	for i, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("weight of priority level %d must be positive, got %d", i, w)
		}
	}

	per := capacity / len(weights)
	q := &Fair{
		levels: make([]chan Call, len(weights)),
		avail:  make(chan struct{}, per*len(weights)),
		mux:    newWeightedRoundRobin(weights),
	}
	for i := range q.levels {
		q.levels[i] = make(chan Call, per)
	}
	return q, nil
}

// Levels is the number of sub-queues.
func (q *Fair) Levels() int { return len(q.levels) }

// LevelLen is the number of calls queued at the given level.
func (q *Fair) LevelLen(level int) int { return len(q.levels[q.clamp(level)]) }

// clamp collapses levels the queue has no sub-queue for onto the last one.
func (q *Fair) clamp(level int) int {
	if level < 0 {
		return 0
	}
	if level >= len(q.levels) {
		return len(q.levels) - 1
	}
	return level
}

func (q *Fair) Put(ctx context.Context, done <-chan struct{}, call Call) error {
	select {
	case q.levels[q.clamp(call.PriorityLevel())] <- call:
		q.avail <- struct{}{}
		return nil
	case <-done:
		return errDone
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Fair) Offer(call Call) bool {
	select {
	case q.levels[q.clamp(call.PriorityLevel())] <- call:
		q.avail <- struct{}{}
		return true
	default:
		return false
	}
}

func (q *Fair) Take(ctx context.Context, done <-chan struct{}) (Call, error) {
	select {
	case <-done:
		return nil, errDone
	default:
	}

	select {
	case <-q.avail:
		return q.next(), nil
	case <-done:
		return nil, errDone
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Fair) Poll() (Call, bool) {
	select {
	case <-q.avail:
		return q.next(), true
	default:
		return nil, false
	}
}

// next dequeues a call on behalf of a token holder.
func (q *Fair) next() Call {
	for {
		start := q.mux.next()
		for i := 0; i < len(q.levels); i++ {
			select {
			case call := <-q.levels[(start+i)%len(q.levels)]:
				return call
			default:
			}
		}
	}
}

func (q *Fair) Len() int {
	n := 0
	for _, level := range q.levels {
		n += len(level)
	}
	return n
}

func (q *Fair) Cap() int { return cap(q.avail) }
