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

import "go.uber.org/fairrpc/fairrpcerrors"

var (
	// ErrQueueFull rejects a call because its queue had no room.
	ErrQueueFull = fairrpcerrors.Newf(fairrpcerrors.CodeResourceExhausted, "call queue is full")

	// ErrBackoff rejects a call because the scheduler asked its caller to
	// back off.
	ErrBackoff = fairrpcerrors.Newf(fairrpcerrors.CodeResourceExhausted, "server is too busy, back off and retry")

	// ErrClosed is returned once the Manager is closed.
	ErrClosed = fairrpcerrors.Newf(fairrpcerrors.CodeUnavailable, "call queue is closed")
)
