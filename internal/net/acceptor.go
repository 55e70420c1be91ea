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

// Package net holds the accept loop shared by fairrpc servers.
package net

import (
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	errAcceptorStopped  = errors.New("the acceptor has been stopped")
	errAlreadyListening = errors.New("the acceptor is already listening")
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Acceptor accepts connections from a listener in the background and hands
// each one to a callback.
type Acceptor struct {
	serve  func(net.Conn)
	logger *zap.Logger

	lock     sync.Mutex
	listener net.Listener
	done     chan error
	stopped  atomic.Bool
}

// NewAcceptor builds an Acceptor that calls serve for every accepted
// connection, from the accept goroutine. serve must not block.
func NewAcceptor(serve func(net.Conn), logger *zap.Logger) *Acceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acceptor{
		serve:  serve,
		logger: logger,
		done:   make(chan error, 1),
	}
}

// Listener returns the listener for this acceptor or nil if it isn't yet
// listening.
func (a *Acceptor) Listener() net.Listener {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.listener
}

// Serve starts accepting from the listener in the background and returns
// immediately.
//
// An error is returned if the acceptor was already serving, or if it was
// stopped with Stop().
func (a *Acceptor) Serve(listener net.Listener) error {
	if a.stopped.Load() {
		return errAcceptorStopped
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	if a.listener != nil {
		return errAlreadyListening
	}
	a.listener = listener

	go func(done chan<- error) {
		// acceptLoop always returns a non-nil error. For us, it's an error
		// only if we didn't call Stop().
		err := a.acceptLoop(listener)
		if !a.stopped.Load() {
			done <- err
		} else {
			done <- nil
		}
	}(a.done)
	return nil
}

func (a *Acceptor) acceptLoop(listener net.Listener) error {
	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() && !a.stopped.Load() {
				if delay == 0 {
					delay = minAcceptDelay
				} else if delay *= 2; delay > maxAcceptDelay {
					delay = maxAcceptDelay
				}
				a.logger.Warn("temporary error accepting connection, retrying",
					zap.Duration("delay", delay), zap.Error(err))
				time.Sleep(delay)
				continue
			}
			return err
		}
		delay = 0
		a.serve(conn)
	}
}

// Stop stops accepting and waits for the accept loop to exit. An error is
// returned if the loop stopped unexpectedly.
//
// Once stopped, an Acceptor cannot serve again.
func (a *Acceptor) Stop() error {
	if a.stopped.Swap(true) {
		return nil
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	if a.listener == nil {
		return nil
	}

	closeErr := a.listener.Close()
	a.listener = nil
	acceptErr := <-a.done // wait until the accept loop stops
	if closeErr != nil {
		return closeErr
	}
	return acceptErr
}
