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

// Package scheduler defines the policy that assigns priority levels to
// incoming calls and decides when callers must back off.
package scheduler

import "time"

//go:generate mockgen -destination=schedulertest/scheduler.go -package=schedulertest go.uber.org/fairrpc/api/scheduler Scheduler

// Schedulable is a call as seen by a Scheduler.
type Schedulable interface {
	// CallerIdentity is the principal the call is accounted to.
	CallerIdentity() string

	// PriorityLevel is the level previously assigned to the call, or zero.
	PriorityLevel() int
}

// Scheduler assigns calls to priority levels and advises admission.
//
// Level zero is the most privileged. All methods may be called concurrently
// from readers and handlers.
type Scheduler interface {
	// PriorityLevel accounts the call to its caller and returns its level in
	// [0, Levels()).
	PriorityLevel(call Schedulable) int

	// ShouldBackOff reports whether the call, already assigned a level,
	// should be rejected instead of queued.
	ShouldBackOff(call Schedulable) bool

	// AddResponseTime records how long a call at the given level took to
	// process once a handler picked it up.
	AddResponseTime(call Schedulable, priority int, processing time.Duration)

	// Stop releases background resources. It is safe to call more than
	// once.
	Stop()
}

// Default puts every call at level zero and never backs off.
var Default Scheduler = defaultScheduler{}

type defaultScheduler struct{}

func (defaultScheduler) PriorityLevel(Schedulable) int                   { return 0 }
func (defaultScheduler) ShouldBackOff(Schedulable) bool                  { return false }
func (defaultScheduler) AddResponseTime(Schedulable, int, time.Duration) {}
func (defaultScheduler) Stop()                                           {}
