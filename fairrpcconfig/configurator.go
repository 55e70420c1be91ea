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

// Package fairrpcconfig builds servers and clients from YAML or from maps
// decoded from any other format.
//
// String values of the address, acl, handlers and identity keys may refer
// to environment variables as ${NAME} or ${NAME:default}.
package fairrpcconfig

import (
	"io"
	"io/ioutil"

	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	"go.uber.org/fairrpc/internal/config"
	"go.uber.org/net/metrics"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Option customizes a Configurator.
type Option interface {
	apply(*Configurator)
}

type optionFunc func(*Configurator)

func (f optionFunc) apply(c *Configurator) { f(c) }

// InterpolationResolver sets the resolver for ${NAME} variables. Variables
// are read from the environment by default.
func InterpolationResolver(resolver func(name string) (string, bool)) Option {
	return optionFunc(func(c *Configurator) {
		c.resolver = resolver
	})
}

// Logger sets the logger handed to the servers, clients and schedulers
// built by the Configurator.
func Logger(logger *zap.Logger) Option {
	return optionFunc(func(c *Configurator) {
		c.logger = logger
	})
}

// Meter sets the scope servers publish their metrics to.
func Meter(meter *metrics.Scope) Option {
	return optionFunc(func(c *Configurator) {
		c.meter = meter
	})
}

// Tally sets the scope decay schedulers publish their gauges to.
func Tally(scope tally.Scope) Option {
	return optionFunc(func(c *Configurator) {
		c.tally = scope
	})
}

// Tracer sets the tracer of servers and clients.
func Tracer(tracer opentracing.Tracer) Option {
	return optionFunc(func(c *Configurator) {
		c.tracer = tracer
	})
}

// Configurator loads configuration and builds servers and clients from it.
type Configurator struct {
	resolver config.VariableResolver
	logger   *zap.Logger
	meter    *metrics.Scope
	tally    tally.Scope
	tracer   opentracing.Tracer
}

// New builds a Configurator.
func New(opts ...Option) *Configurator {
	c := &Configurator{
		resolver: config.EnvResolver,
		logger:   zap.NewNop(),
		tally:    tally.NoopScope,
		tracer:   opentracing.NoopTracer{},
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}

// LoadConfigFromYAML loads a Config from YAML data. Use LoadConfig if you
// have already parsed a map[string]interface{} or
// map[interface{}]interface{}.
func (c *Configurator) LoadConfigFromYAML(r io.Reader) (Config, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return Config{}, err
	}

	var data map[string]interface{}
	if err := yaml.Unmarshal(b, &data); err != nil {
		return Config{}, err
	}
	return c.LoadConfig(data)
}

// LoadConfig loads a Config from a map[string]interface{} or
// map[interface{}]interface{}.
func (c *Configurator) LoadConfig(data interface{}) (Config, error) {
	var cfg Config
	if err := config.DecodeInto(&cfg, data, config.InterpolateWith(c.resolver)); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
