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

// Package backoff computes retry delays for the fairrpc client.
package backoff

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/fairrpc/api/backoff"
	"go.uber.org/multierr"
)

// ExponentialOption customizes an Exponential backoff.
type ExponentialOption func(*exponentialOptions)

type exponentialOptions struct {
	base, min, max time.Duration
	rand           *rand.Rand
}

func (e exponentialOptions) validate() (err error) {
	if e.base <= 0 {
		err = multierr.Append(err, errors.New("invalid base for exponential backoff, need greater than zero"))
	}
	if e.min < 0 {
		err = multierr.Append(err, errors.New("invalid min for exponential backoff, need greater than or equal to zero"))
	}
	if e.max < 0 {
		err = multierr.Append(err, errors.New("invalid max for exponential backoff, need greater than or equal to zero"))
	}
	if e.max < e.min {
		err = multierr.Append(err, errors.New("exponential max value must be greater than min value"))
	}
	return err
}

func defaultExponentialOptions() exponentialOptions {
	return exponentialOptions{
		base: 10 * time.Millisecond,
		max:  time.Minute,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// BaseJump sets the delay doubled on every attempt.
func BaseJump(t time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.base = t
	}
}

// MaxBackoff caps every returned delay.
func MaxBackoff(t time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.max = t
	}
}

// MinBackoff is added to every returned delay.
func MinBackoff(t time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.min = t
	}
}

func randGenerator(r *rand.Rand) ExponentialOption {
	return func(options *exponentialOptions) {
		options.rand = r
	}
}

// Exponential is a "full jitter" exponential backoff: the delay for attempt n
// is drawn uniformly from [min, min+min(base*2^n, max-min)].
//
// It is safe for concurrent use.
type Exponential struct {
	base, min, spread time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

var (
	_ backoff.Strategy = (*Exponential)(nil)
	_ backoff.Backoff  = (*Exponential)(nil)
)

// NewExponential builds an Exponential backoff.
func NewExponential(opts ...ExponentialOption) (*Exponential, error) {
	options := defaultExponentialOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	return &Exponential{
		base:   options.base,
		min:    options.min,
		spread: options.max - options.min,
		rand:   options.rand,
	}, nil
}

// Backoff returns e; an Exponential carries no per-loop state.
func (e *Exponential) Backoff() backoff.Backoff { return e }

// Duration returns the delay before retry number attempts.
func (e *Exponential) Duration(attempts uint) time.Duration {
	ceiling := int64(e.spread)
	if attempts < 63 {
		// A negative or oversized shift result falls back to the full spread.
		if jump := (int64(1) << attempts) * int64(e.base); jump > 0 && jump < ceiling {
			ceiling = jump
		}
	}

	e.mu.Lock()
	n := e.rand.Int63n(ceiling + 1)
	e.mu.Unlock()
	return e.min + time.Duration(n)
}
