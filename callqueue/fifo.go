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

import "context"

type fifo struct {
	calls chan Call
}

var _ Queue = (*fifo)(nil)

// NewFIFO returns a Queue that serves calls in arrival order, ignoring their
// priority levels.
func NewFIFO(capacity int) Queue {
	return &fifo{calls: make(chan Call, capacity)}
}

func (q *fifo) Put(ctx context.Context, done <-chan struct{}, call Call) error {
	select {
	case q.calls <- call:
		return nil
	case <-done:
		return errDone
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *fifo) Offer(call Call) bool {
	select {
	case q.calls <- call:
		return true
	default:
		return false
	}
}

func (q *fifo) Take(ctx context.Context, done <-chan struct{}) (Call, error) {
	select {
	case <-done:
		return nil, errDone
	default:
	}

	select {
	case call := <-q.calls:
		return call, nil
	case <-done:
		return nil, errDone
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *fifo) Poll() (Call, bool) {
	select {
	case call := <-q.calls:
		return call, true
	default:
		return nil, false
	}
}

func (q *fifo) Len() int { return len(q.calls) }
func (q *fifo) Cap() int { return cap(q.calls) }
