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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClockAdd(t *testing.T) {
	clock := NewFake()
	start := clock.Now()
	clock.Add(time.Second)
	assert.Equal(t, time.Second, Since(clock, start))
}

func TestFakeClockSetBackwards(t *testing.T) {
	clock := NewFake()
	clock.Set(time.Unix(100, 0))
	clock.Set(time.Unix(50, 0))
	assert.Equal(t, time.Unix(100, 0), clock.Now())
}

func TestFakeClockAfter(t *testing.T) {
	clock := NewFake()
	start := clock.Now()
	then := clock.After(time.Second)
	require.Equal(t, 1, clock.Timers())

	clock.Add(500 * time.Millisecond)
	select {
	case <-then:
		t.Fatal("timer fired early")
	default:
	}

	clock.Add(500 * time.Millisecond)
	select {
	case got := <-then:
		assert.Equal(t, start.Add(time.Second), got)
	case <-time.After(time.Second):
		assert.Fail(t, "test timed out")
	}
	assert.Equal(t, 0, clock.Timers())
}

func TestFakeClockFiresInOrder(t *testing.T) {
	clock := NewFake()
	late := clock.Timer(2 * time.Second)
	early := clock.Timer(time.Second)

	clock.Add(3 * time.Second)
	assert.Equal(t, time.Unix(1, 0), <-early.C())
	assert.Equal(t, time.Unix(2, 0), <-late.C())
}

func TestFakeAfterFunc(t *testing.T) {
	clock := NewFake()
	done := make(chan struct{})
	clock.AfterFunc(time.Second, func() { close(done) })
	clock.Add(time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		assert.Fail(t, "test timed out")
	}
}

func TestFakeTimerStop(t *testing.T) {
	clock := NewFake()
	timer := clock.Timer(60 * time.Second)
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	assert.Equal(t, 0, clock.Timers())
}

func TestFakeTimerReset(t *testing.T) {
	clock := NewFake()
	timer := clock.Timer(60 * time.Second)
	assert.True(t, timer.Stop())
	assert.False(t, timer.Reset(time.Second))

	clock.Add(time.Second)
	select {
	case <-timer.C():
	case <-time.After(time.Second):
		assert.Fail(t, "test timed out")
	}
}

func TestFakeTimerResetWithoutStop(t *testing.T) {
	clock := NewFake()
	timer := clock.Timer(60 * time.Second)
	assert.True(t, timer.Reset(time.Second))

	clock.Add(time.Second)
	select {
	case <-timer.C():
	case <-time.After(time.Second):
		assert.Fail(t, "test timed out")
	}
}

func TestRealClock(t *testing.T) {
	clock := NewReal()
	timer := clock.Timer(time.Hour)
	assert.True(t, timer.Stop())
	assert.False(t, clock.Now().IsZero())
}
