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

// Package lifecycle drives servers and clients through start and stop
// exactly once.
package lifecycle

import (
	"context"
	"errors"
	syncatomic "sync/atomic"

	"go.uber.org/atomic"
	"go.uber.org/fairrpc/fairrpcerrors"
)

// State is a step in the life of a started object.
type State int

const (
	// Idle means neither Start nor Stop has been called.
	Idle State = iota
	// Starting means Start is running.
	Starting
	// Running means Start returned successfully.
	Running
	// Stopping means Stop is running.
	Stopping
	// Stopped means Stop returned successfully.
	Stopped
	// Errored means Start or Stop failed and the object is unusable.
	Errored
)

var stateToName = map[State]string{
	Idle:     "idle",
	Starting: "starting",
	Running:  "running",
	Stopping: "stopping",
	Stopped:  "stopped",
	Errored:  "errored",
}

// String returns the state's name.
func (s State) String() string {
	if name, ok := stateToName[s]; ok {
		return name
	}
	return "unknown"
}

// Once advances monotonically through the lifecycle states, running the
// start and stop functions handed to it at most once each.
//
//  - Start blocks until the state is Running or beyond.
//  - Stop blocks until the state is Stopped or Errored.
//  - A Stop that happens before Start pre-empts it.
type Once struct {
	startCh    chan struct{}
	stoppingCh chan struct{}
	stopCh     chan struct{}

	// err is written only by the goroutine that won the Start or Stop race,
	// before it closes the matching channel.
	err   syncatomic.Value
	state atomic.Int32
}

// NewOnce returns a lifecycle controller in the Idle state.
func NewOnce() *Once {
	return &Once{
		startCh:    make(chan struct{}),
		stoppingCh: make(chan struct{}),
		stopCh:     make(chan struct{}),
	}
}

// Start runs f once and returns its error. Later calls wait for the first to
// finish and return the same error.
func (o *Once) Start(f func() error) error {
	if o.state.CAS(int32(Idle), int32(Starting)) {
		var err error
		if f != nil {
			err = f()
		}

		if err != nil {
			o.err.Store(err)
			o.state.Store(int32(Errored))
			close(o.stoppingCh)
			close(o.stopCh)
		} else {
			o.state.Store(int32(Running))
		}
		close(o.startCh)
		return err
	}

	<-o.startCh
	return o.loadError()
}

// WaitUntilRunning blocks until the object is running. ctx must carry a
// deadline.
func (o *Once) WaitUntilRunning(ctx context.Context) error {
	state := o.State()
	if state == Running {
		return nil
	}
	if state > Running {
		return fairrpcerrors.FailedPreconditionErrorf("could not wait for instance to start running: current state is %q", state)
	}
	if _, ok := ctx.Deadline(); !ok {
		return fairrpcerrors.InvalidArgumentErrorf("could not wait for instance to start running: deadline required on request context")
	}

	select {
	case <-o.startCh:
		if state := o.State(); state != Running {
			return fairrpcerrors.FailedPreconditionErrorf("instance did not enter running state, current state is %q", state)
		}
		return nil
	case <-ctx.Done():
		return fairrpcerrors.FailedPreconditionErrorf("context finished while waiting for instance to start: %s", ctx.Err().Error())
	}
}

// Stop runs f once and returns its error. Later calls wait for the first to
// finish and return the same error.
func (o *Once) Stop(f func() error) error {
	if o.state.CAS(int32(Idle), int32(Stopped)) {
		close(o.startCh)
		close(o.stoppingCh)
		close(o.stopCh)
		return nil
	}

	<-o.startCh

	if o.state.CAS(int32(Running), int32(Stopping)) {
		close(o.stoppingCh)

		var err error
		if f != nil {
			err = f()
		}

		if err != nil {
			o.err.Store(err)
			o.state.Store(int32(Errored))
		} else {
			o.state.Store(int32(Stopped))
		}
		close(o.stopCh)
		return err
	}

	<-o.stopCh
	return o.loadError()
}

// Started closes once the object is running, or failed to start.
func (o *Once) Started() <-chan struct{} { return o.startCh }

// Stopping closes once Stop begins.
func (o *Once) Stopping() <-chan struct{} { return o.stoppingCh }

// Stopped closes once Stop finishes.
func (o *Once) Stopped() <-chan struct{} { return o.stopCh }

// State returns a state the object has at least reached.
func (o *Once) State() State {
	return State(o.state.Load())
}

// IsRunning reports whether the object is currently running.
func (o *Once) IsRunning() bool {
	return o.State() == Running
}

func (o *Once) loadError() error {
	v := o.err.Load()
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return errors.New("lifecycle err was not `error` type")
}
