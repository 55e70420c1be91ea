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

import (
	"time"

	"go.uber.org/fairrpc/api/scheduler"
	"go.uber.org/fairrpc/api/service"
	"go.uber.org/fairrpc/callqueue"
	"go.uber.org/fairrpc/internal/wire"
)

var _ callqueue.Call = (*call)(nil)

// call is a decoded request on its way from a reader to a handler and back
// to the responder. Exactly one stage owns it at a time.
type call struct {
	conn *connection
	seq  uint64 // receipt order on conn

	id       uint64
	service  string
	method   string
	handler  service.Method
	body     []byte
	identity string

	received  time.Time
	priority  int
	scheduler scheduler.Scheduler // assigned priority
}

func (c *call) CallerIdentity() string { return c.identity }

func (c *call) PriorityLevel() int { return c.priority }

func (c *call) SetPriorityLevel(level int) { c.priority = level }

func (c *call) SetScheduler(s scheduler.Scheduler) { c.scheduler = s }

func (c *call) info() CallInfo {
	return CallInfo{
		Service:  c.service,
		Method:   c.method,
		Identity: c.identity,
		Priority: c.priority,
	}
}

// succeed sends the response body to the caller.
func (c *call) succeed(body []byte) {
	c.conn.respond(c.seq, &wire.Response{CallID: c.id, Body: body})
}

// fail sends err to the caller.
func (c *call) fail(err error) {
	c.conn.respond(c.seq, wire.ErrorResponse(c.id, err))
}
