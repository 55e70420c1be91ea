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

package decay

import (
	"errors"
	"fmt"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/fairrpc/internal/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Option customizes a Scheduler.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

type options struct {
	levels            int
	period            time.Duration
	decayFactor       float64
	thresholds        []float64
	backoffThresholds []time.Duration
	evictionThreshold float64

	clock  clock.Clock
	logger *zap.Logger
	scope  tally.Scope
}

func defaultOptions() options {
	return options{
		levels:            4,
		period:            5 * time.Second,
		decayFactor:       0.5,
		evictionThreshold: 1,
		clock:             clock.NewReal(),
		logger:            zap.NewNop(),
		scope:             tally.NoopScope,
	}
}

// Levels sets the number of priority levels. Defaults to 4.
func Levels(n int) Option {
	return optionFunc(func(o *options) {
		o.levels = n
	})
}

// Period sets how often call counts decay. Fairness reacts to a caller's
// change in volume at most this fast. Defaults to five seconds.
func Period(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.period = d
	})
}

// DecayFactor sets the weight kept by past call volume at every sweep, in
// (0, 1). Defaults to 0.5.
func DecayFactor(f float64) Option {
	return optionFunc(func(o *options) {
		o.decayFactor = f
	})
}

// Thresholds sets the shares of the total decayed call volume at which a
// caller moves down a level. It needs Levels-1 ascending values in (0, 1];
// a caller whose share reaches thresholds[i-1] lands at level i or beyond.
//
// Defaults to halving shares: for four levels, 12.5%, 25% and 50%.
func Thresholds(shares ...float64) Option {
	return optionFunc(func(o *options) {
		o.thresholds = shares
	})
}

// BackoffThresholds enables backoff by response time. It needs one
// non-decreasing duration per level: once the average processing time of a
// level exceeds its threshold, new calls at that level are rejected.
func BackoffThresholds(thresholds ...time.Duration) Option {
	return optionFunc(func(o *options) {
		o.backoffThresholds = thresholds
	})
}

// EvictionThreshold sets the decayed volume below which a caller is
// forgotten. Defaults to one call.
func EvictionThreshold(v float64) Option {
	return optionFunc(func(o *options) {
		o.evictionThreshold = v
	})
}

// WithClock sets the clock driving the sweep.
func WithClock(c clock.Clock) Option {
	return optionFunc(func(o *options) {
		o.clock = c
	})
}

// WithLogger sets the logger for the Scheduler.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// WithTally sets the scope the Scheduler publishes its gauges to after each
// sweep.
func WithTally(scope tally.Scope) Option {
	return optionFunc(func(o *options) {
		o.scope = scope
	})
}

// DefaultThresholds returns the volume shares used when Thresholds is not
// given: level i of n starts at a share of 2^(i-1) / 2^(n-1) of the total.
func DefaultThresholds(levels int) []float64 {
	if levels < 2 {
		return nil
	}
	thresholds := make([]float64, levels-1)
	div := float64(uint64(1) << uint(levels-1))
	for i := range thresholds {
		thresholds[i] = float64(uint64(1)<<uint(i)) / div
	}
	return thresholds
}

func (o *options) validate() (err error) {
	if o.levels < 1 {
		err = multierr.Append(err, fmt.Errorf("decay scheduler needs at least one level, got %d", o.levels))
	}
	if o.period <= 0 {
		err = multierr.Append(err, fmt.Errorf("decay period must be positive, got %v", o.period))
	}
	if o.decayFactor <= 0 || o.decayFactor >= 1 {
		err = multierr.Append(err, fmt.Errorf("decay factor must be in (0, 1), got %v", o.decayFactor))
	}
	if o.evictionThreshold < 0 {
		err = multierr.Append(err, errors.New("eviction threshold must not be negative"))
	}
	if o.levels < 1 {
		return err
	}

	if len(o.thresholds) != o.levels-1 {
		err = multierr.Append(err, fmt.Errorf("expected %d volume thresholds for %d levels, got %d", o.levels-1, o.levels, len(o.thresholds)))
	} else {
		for i, share := range o.thresholds {
			if share <= 0 || share > 1 {
				err = multierr.Append(err, fmt.Errorf("volume threshold %d must be in (0, 1], got %v", i, share))
			}
			if i > 0 && share < o.thresholds[i-1] {
				err = multierr.Append(err, fmt.Errorf("volume thresholds must be ascending, got %v after %v", share, o.thresholds[i-1]))
			}
		}
	}

	if len(o.backoffThresholds) > 0 {
		if len(o.backoffThresholds) != o.levels {
			err = multierr.Append(err, fmt.Errorf("expected %d backoff thresholds, got %d", o.levels, len(o.backoffThresholds)))
		}
		for i, d := range o.backoffThresholds {
			if d <= 0 {
				err = multierr.Append(err, fmt.Errorf("backoff threshold %d must be positive, got %v", i, d))
			}
			if i > 0 && d < o.backoffThresholds[i-1] {
				err = multierr.Append(err, fmt.Errorf("backoff thresholds must be ascending, got %v after %v", d, o.backoffThresholds[i-1]))
			}
		}
	}
	return err
}
