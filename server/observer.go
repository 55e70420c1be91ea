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

package server

import "time"

// CallInfo describes a call to a CallObserver.
type CallInfo struct {
	Service  string
	Method   string
	Identity string
	Priority int

	// QueueTime is the time between admission and a handler picking the
	// call up. ProcessingTime is the time spent in the method. Both are
	// zero in CallReceived.
	QueueTime      time.Duration
	ProcessingTime time.Duration
}

// CallObserver is notified of calls. Methods are called from readers and
// handlers and must not block.
type CallObserver interface {
	// CallReceived is called once a call is admitted to the call queue.
	CallReceived(info CallInfo)

	// CallCompleted is called once a handler ran the call, with the error
	// sent back to the caller, if any.
	CallCompleted(info CallInfo, err error)
}

type nopObserver struct{}

func (nopObserver) CallReceived(CallInfo)         {}
func (nopObserver) CallCompleted(CallInfo, error) {}
