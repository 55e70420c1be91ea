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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fairrpc/api/scheduler"
	"go.uber.org/fairrpc/internal/testtime"
)

type testCall struct {
	id        int
	identity  string
	level     int
	scheduler scheduler.Scheduler
}

func (c *testCall) CallerIdentity() string             { return c.identity }
func (c *testCall) PriorityLevel() int                 { return c.level }
func (c *testCall) SetPriorityLevel(l int)             { c.level = l }
func (c *testCall) SetScheduler(s scheduler.Scheduler) { c.scheduler = s }

func newCall(id, level int) *testCall {
	return &testCall{id: id, identity: "alice", level: level}
}

func TestNew(t *testing.T) {
	tests := []struct {
		msg      string
		kind     string
		levels   int
		capacity int
		wantErr  string
		wantCap  int
	}{
		{msg: "fifo", kind: KindFIFO, capacity: 10, wantCap: 10},
		{msg: "default is fifo", capacity: 3, wantCap: 3},
		{msg: "fair", kind: KindFair, levels: 4, capacity: 100, wantCap: 100},
		{msg: "fair rounds down per level", kind: KindFair, levels: 3, capacity: 10, wantCap: 9},
		{msg: "zero capacity", kind: KindFIFO, wantErr: "capacity must be positive"},
		{msg: "fair without levels", kind: KindFair, capacity: 10, wantErr: "at least one priority level"},
		{msg: "fair too small", kind: KindFair, levels: 4, capacity: 2, wantErr: "smaller than its 4 levels"},
		{msg: "unknown", kind: "lifo", capacity: 10, wantErr: `unknown call queue "lifo"`},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			q, err := New(tt.kind, tt.levels, tt.capacity)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCap, q.Cap())
			assert.Equal(t, 0, q.Len())
		})
	}
}

func TestFIFO(t *testing.T) {
	q := NewFIFO(2)
	assert.True(t, q.Offer(newCall(1, 3)))
	require.NoError(t, q.Put(context.Background(), nil, newCall(2, 0)))
	assert.False(t, q.Offer(newCall(3, 0)), "queue should be full")
	assert.Equal(t, 2, q.Len())

	c, err := q.Take(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.(*testCall).id)

	c, ok := q.Poll()
	require.True(t, ok)
	assert.Equal(t, 2, c.(*testCall).id)

	_, ok = q.Poll()
	assert.False(t, ok)
}

func TestFIFOTakeInterrupted(t *testing.T) {
	q := NewFIFO(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*testtime.Millisecond)
	defer cancel()
	_, err := q.Take(ctx, nil)
	assert.Equal(t, context.DeadlineExceeded, err)

	done := make(chan struct{})
	close(done)
	_, err = q.Take(context.Background(), done)
	assert.Equal(t, errDone, err)

	require.True(t, q.Offer(newCall(1, 0)))
	assert.Equal(t, errDone, q.Put(context.Background(), done, newCall(2, 0)))
}

func TestFairCollapsesUnknownLevels(t *testing.T) {
	q, err := NewFair(2, 10)
	require.NoError(t, err)

	require.True(t, q.Offer(newCall(1, 7)))
	require.True(t, q.Offer(newCall(2, -1)))
	assert.Equal(t, 1, q.LevelLen(1))
	assert.Equal(t, 1, q.LevelLen(0))
	assert.Equal(t, 2, q.Levels())
}

func TestFairLevelCapacity(t *testing.T) {
	q, err := NewFair(2, 4)
	require.NoError(t, err)

	assert.True(t, q.Offer(newCall(1, 0)))
	assert.True(t, q.Offer(newCall(2, 0)))
	assert.False(t, q.Offer(newCall(3, 0)), "level 0 is full")
	assert.True(t, q.Offer(newCall(4, 1)), "level 1 still has room")
}

func TestFairWeightedRoundRobin(t *testing.T) {
	q, err := NewFair(3, 30)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		for level := 0; level < 3; level++ {
			require.True(t, q.Offer(newCall(i, level)))
		}
	}

	var levels []int
	for i := 0; i < 14; i++ {
		c, err := q.Take(context.Background(), nil)
		require.NoError(t, err)
		levels = append(levels, c.PriorityLevel())
	}
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 2, 0, 0, 0, 0, 1, 1, 2}, levels)
}

func TestFairServesWhateverIsQueued(t *testing.T) {
	q, err := NewFair(3, 30)
	require.NoError(t, err)

	// Only the least privileged level has work; a taker must not wait for
	// the multiplexer to come around to it.
	require.True(t, q.Offer(newCall(1, 2)))
	c, err := q.Take(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.(*testCall).id)
}

func TestFairFIFOWithinLevel(t *testing.T) {
	q, err := NewFair(2, 20)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Put(context.Background(), nil, newCall(i, 1)))
	}
	for i := 0; i < 5; i++ {
		c, ok := q.Poll()
		require.True(t, ok)
		assert.Equal(t, i, c.(*testCall).id)
	}
}

func TestFairTakeBlocksUntilPut(t *testing.T) {
	q, err := NewFair(2, 4)
	require.NoError(t, err)

	got := make(chan Call)
	go func() {
		c, err := q.Take(context.Background(), nil)
		assert.NoError(t, err)
		got <- c
	}()

	select {
	case <-got:
		t.Fatal("take returned before anything was queued")
	case <-time.After(10 * testtime.Millisecond):
	}

	require.True(t, q.Offer(newCall(9, 1)))
	select {
	case c := <-got:
		assert.Equal(t, 9, c.(*testCall).id)
	case <-time.After(testtime.Second):
		t.Fatal("take did not wake up")
	}
}

func TestDefaultWeights(t *testing.T) {
	assert.Equal(t, []int{1}, DefaultWeights(1))
	assert.Equal(t, []int{8, 4, 2, 1}, DefaultWeights(4))
}

func TestFairWeightsValidation(t *testing.T) {
	_, err := NewFairWithWeights(10, nil)
	assert.Error(t, err)
	_, err = NewFairWithWeights(10, []int{2, 0})
	assert.Error(t, err)
}
