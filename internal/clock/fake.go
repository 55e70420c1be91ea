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

package clock

import (
	"container/heap"
	"runtime"
	"sync"
	"time"
)

// FakeClock is a Clock that only moves forward when told to. Timers created
// from it fire as Add or Set pass their deadlines.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers timers
}

var _ Clock = (*FakeClock)(nil)

// NewFake returns a fake clock set to the Unix epoch.
func NewFake() *FakeClock {
	return &FakeClock{now: time.Unix(0, 0)}
}

// Add moves the clock forward by d, firing every timer that comes due on the
// way in deadline order.
func (fc *FakeClock) Add(d time.Duration) {
	fc.mu.Lock()
	end := fc.now.Add(d)
	fc.mu.Unlock()
	fc.Set(end)
}

// Set moves the clock forward to end. Moving backwards is a no-op.
func (fc *FakeClock) Set(end time.Time) {
	fc.mu.Lock()
	var due []*FakeTimer
	for len(fc.timers) > 0 && !fc.timers[0].when.After(end) {
		t := heap.Pop(&fc.timers).(*FakeTimer)
		if fc.now.Before(t.when) {
			fc.now = t.when
		}
		due = append(due, t)
	}
	if fc.now.Before(end) {
		fc.now = end
	}
	fc.mu.Unlock()

	for _, t := range due {
		t.fire()
	}
	nap()
}

// Timers reports how many timers are waiting to fire. Tests use it to wait
// for a goroutine to arm its timer before advancing the clock.
func (fc *FakeClock) Timers() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.timers)
}

// Timer returns a timer that fires once the clock passes now+d.
func (fc *FakeClock) Timer(d time.Duration) Timer {
	return fc.newTimer(d, nil)
}

// After is Timer(d).C().
func (fc *FakeClock) After(d time.Duration) <-chan time.Time {
	return fc.Timer(d).C()
}

// AfterFunc runs f in its own goroutine once the clock passes now+d.
func (fc *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	return fc.newTimer(d, f)
}

// Now returns the fake time.
func (fc *FakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

// Sleep blocks until another goroutine advances the clock by d.
func (fc *FakeClock) Sleep(d time.Duration) {
	<-fc.After(d)
}

func (fc *FakeClock) newTimer(d time.Duration, f func()) *FakeTimer {
	t := &FakeTimer{
		c:     make(chan time.Time, 1),
		clock: fc,
		f:     f,
		index: -1,
	}
	fc.mu.Lock()
	t.when = fc.now.Add(d)
	if d > 0 {
		heap.Push(&fc.timers, t)
		fc.mu.Unlock()
		return t
	}
	fc.mu.Unlock()
	t.fire()
	return t
}

// FakeTimer is a Timer driven by a FakeClock.
type FakeTimer struct {
	c     chan time.Time
	clock *FakeClock
	f     func()
	when  time.Time
	index int
}

// C returns the channel the timer fires on.
func (t *FakeTimer) C() <-chan time.Time { return t.c }

// Reset re-arms the timer to fire d after the clock's current time. It
// reports whether the timer was still pending.
func (t *FakeTimer) Reset(d time.Duration) bool {
	fc := t.clock
	fc.mu.Lock()
	defer fc.mu.Unlock()

	select {
	case <-t.c:
	default:
	}

	t.when = fc.now.Add(d)
	if t.index >= 0 {
		heap.Fix(&fc.timers, t.index)
		return true
	}
	heap.Push(&fc.timers, t)
	return false
}

// Stop disarms the timer, reporting whether it was still pending.
func (t *FakeTimer) Stop() bool {
	fc := t.clock
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if t.index < 0 {
		return false
	}
	heap.Remove(&fc.timers, t.index)
	return true
}

func (t *FakeTimer) fire() {
	if t.f != nil {
		go t.f()
		return
	}
	select {
	case t.c <- t.when:
	default:
	}
}

// nap yields so that goroutines woken by a timer get a chance to run before
// the caller advances the clock again.
func nap() {
	runtime.Gosched()
}
