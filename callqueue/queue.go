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

// Package callqueue holds decoded calls between the readers that admit them
// and the handlers that run them.
//
// A Manager binds a Queue to a scheduler.Scheduler. The scheduler assigns
// each call a priority level and may ask its caller to back off; the queue
// orders admitted calls for the handlers. The pair can be replaced at run
// time with Swap.
package callqueue

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fairrpc/api/scheduler"
)

// Call is a unit of work held by a queue.
type Call interface {
	scheduler.Schedulable

	// SetPriorityLevel records the level assigned by the scheduler.
	SetPriorityLevel(level int)

	// SetScheduler records the scheduler that assigned the level. The
	// call's response time is reported to that scheduler, even if the
	// Manager has moved on to another one since.
	SetScheduler(s scheduler.Scheduler)
}

// Queue is a bounded blocking queue of calls.
//
// Put and Take give up when ctx is done or when done closes. A Manager
// closes done to retire a queue or to shut down.
type Queue interface {
	// Put blocks until the call fits in the queue.
	Put(ctx context.Context, done <-chan struct{}, call Call) error

	// Offer adds the call if there is room, without blocking.
	Offer(call Call) bool

	// Take blocks until a call is available.
	Take(ctx context.Context, done <-chan struct{}) (Call, error)

	// Poll removes a call if one is available, without blocking.
	Poll() (Call, bool)

	// Len is the number of queued calls.
	Len() int

	// Cap is the number of calls the queue can hold.
	Cap() int
}

// errDone is returned by Queue operations interrupted by their done channel.
var errDone = errors.New("queue operation interrupted")

// Kinds of Queue understood by New.
const (
	KindFIFO = "fifo"
	KindFair = "fair"
)

// New builds the named kind of Queue holding up to capacity calls. levels is
// the number of priority levels; a FIFO queue ignores it.
func New(kind string, levels, capacity int) (Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("call queue capacity must be positive, got %d", capacity)
	}
	switch kind {
	case KindFIFO, "":
		return NewFIFO(capacity), nil
	case KindFair:
		if levels <= 0 {
			return nil, fmt.Errorf("fair call queue needs at least one priority level, got %d", levels)
		}
		return NewFair(levels, capacity)
	default:
		return nil, fmt.Errorf("unknown call queue %q, expected %q or %q", kind, KindFIFO, KindFair)
	}
}
