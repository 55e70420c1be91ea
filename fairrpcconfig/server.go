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

package fairrpcconfig

import (
	"fmt"

	"go.uber.org/fairrpc/api/scheduler"
	"go.uber.org/fairrpc/api/service"
	"go.uber.org/fairrpc/scheduler/decay"
	"go.uber.org/fairrpc/server"
	"go.uber.org/multierr"
)

// NewServer builds a server for the given services. The server owns the
// scheduler built for it and stops it with the server.
func (c *Configurator) NewServer(cfg ServerConfig, services ...service.Service) (*server.Server, error) {
	sched, err := c.NewScheduler(cfg)
	if err != nil {
		return nil, err
	}

	s, err := server.New(server.Config{
		Address:             cfg.Address,
		Services:            services,
		Handlers:            cfg.Handlers,
		Readers:             cfg.Readers,
		QueueSizePerHandler: cfg.QueueSizePerHandler,
		MaxConnections:      cfg.MaxConnections,
	}, c.serverOptions(cfg, sched)...)
	if err != nil {
		if sched != nil {
			sched.Stop()
		}
		return nil, err
	}
	return s, nil
}

// NewScheduler builds the scheduler named by the configuration. It returns
// nil for the default scheduler.
func (c *Configurator) NewScheduler(cfg ServerConfig) (scheduler.Scheduler, error) {
	switch cfg.Scheduler {
	case "", SchedulerDefault:
		var err error
		if cfg.DecayFactor != 0 {
			err = multierr.Append(err, errNeedsDecay("decayFactor"))
		}
		if cfg.DecayPeriod != 0 {
			err = multierr.Append(err, errNeedsDecay("decayPeriod"))
		}
		if len(cfg.BackoffThresholds) > 0 {
			err = multierr.Append(err, errNeedsDecay("backoffThresholds"))
		}
		return nil, err

	case SchedulerDecay:
		opts := []decay.Option{
			decay.WithLogger(c.logger.Named("decay")),
			decay.WithTally(c.tally),
		}
		if cfg.PriorityLevels != 0 {
			opts = append(opts, decay.Levels(cfg.PriorityLevels))
		}
		if cfg.DecayFactor != 0 {
			opts = append(opts, decay.DecayFactor(cfg.DecayFactor))
		}
		if cfg.DecayPeriod != 0 {
			opts = append(opts, decay.Period(cfg.DecayPeriod))
		}
		if len(cfg.BackoffThresholds) > 0 {
			opts = append(opts, decay.BackoffThresholds(cfg.BackoffThresholds...))
		}
		s, err := decay.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("invalid decay scheduler: %v", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown scheduler %q, expected %q or %q", cfg.Scheduler, SchedulerDefault, SchedulerDecay)
	}
}

func errNeedsDecay(key string) error {
	return fmt.Errorf("%s is only supported by the %q scheduler", key, SchedulerDecay)
}

func (c *Configurator) serverOptions(cfg ServerConfig, sched scheduler.Scheduler) []server.Option {
	opts := []server.Option{
		server.WithLogger(c.logger),
		server.WithTracer(c.tracer),
		server.WithBackoff(cfg.Backoff),
		server.WithAuthorizePerCall(cfg.AuthorizePerCall),
	}
	if c.meter != nil {
		opts = append(opts, server.WithMeter(c.meter))
	}
	if cfg.CallQueue != "" {
		opts = append(opts, server.WithCallQueue(cfg.CallQueue))
	}
	if sched != nil {
		opts = append(opts, server.WithScheduler(sched))
	}
	if cfg.PriorityLevels != 0 {
		opts = append(opts, server.WithPriorityLevels(cfg.PriorityLevels))
	}
	if cfg.ACL != nil {
		opts = append(opts, server.WithAuthorizer(service.NewACL(*cfg.ACL)))
	}
	if cfg.MaxIdleTime != 0 {
		opts = append(opts, server.WithMaxIdleTime(cfg.MaxIdleTime))
	}
	if cfg.Ping.isSet() {
		opts = append(opts, server.WithPing(cfg.Ping.enabled(), cfg.Ping.Interval))
	}
	return opts
}
