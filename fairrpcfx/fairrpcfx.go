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

// Package fairrpcfx serves and calls fairrpc services from an fx
// application.
//
// The application provides a fairrpcconfig.Config and the services to
// serve, as a value group named "fairrpcfx":
//
// 	type ServiceResult struct {
// 		fx.Out
//
// 		Service service.Service `group:"fairrpcfx"`
// 	}
//
// The server starts and stops with the application.
package fairrpcfx

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	"go.uber.org/fairrpc/api/service"
	"go.uber.org/fairrpc/client"
	"go.uber.org/fairrpc/fairrpcconfig"
	"go.uber.org/fairrpc/server"
	"go.uber.org/fx"
	"go.uber.org/net/metrics"
	"go.uber.org/zap"
)

const _name = "fairrpcfx"

// Module provides a fairrpc server and client and starts the server.
var Module = fx.Options(
	fx.Provide(NewConfigurator),
	fx.Provide(NewServer),
	fx.Provide(NewClient),
	fx.Invoke(StartServer),
)

// ConfiguratorParams defines the dependencies of the Configurator.
type ConfiguratorParams struct {
	fx.In

	Logger *zap.Logger        `optional:"true"`
	Meter  *metrics.Scope     `optional:"true"`
	Tally  tally.Scope        `optional:"true"`
	Tracer opentracing.Tracer `optional:"true"`
}

// NewConfigurator produces the Configurator building servers and clients.
func NewConfigurator(p ConfiguratorParams) *fairrpcconfig.Configurator {
	var opts []fairrpcconfig.Option
	if p.Logger != nil {
		opts = append(opts, fairrpcconfig.Logger(p.Logger.Named(_name)))
	}
	if p.Meter != nil {
		opts = append(opts, fairrpcconfig.Meter(p.Meter))
	}
	if p.Tally != nil {
		opts = append(opts, fairrpcconfig.Tally(p.Tally))
	}
	if p.Tracer != nil {
		opts = append(opts, fairrpcconfig.Tracer(p.Tracer))
	}
	return fairrpcconfig.New(opts...)
}

// ServerParams defines the dependencies of the server.
type ServerParams struct {
	fx.In

	Configurator *fairrpcconfig.Configurator
	Config       fairrpcconfig.Config
	Services     []service.Service `group:"fairrpcfx"`
}

// ServerResult defines the values produced by NewServer.
type ServerResult struct {
	fx.Out

	Server *server.Server
}

// NewServer produces a server for the services of the application.
func NewServer(p ServerParams) (ServerResult, error) {
	s, err := p.Configurator.NewServer(p.Config.Server, p.Services...)
	if err != nil {
		return ServerResult{}, err
	}
	return ServerResult{Server: s}, nil
}

// StartServerParams defines the dependencies of StartServer.
type StartServerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Server    *server.Server
}

// StartServer ties the server to the application lifecycle.
func StartServer(p StartServerParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return p.Server.Start()
		},
		OnStop: func(context.Context) error {
			return p.Server.Stop()
		},
	})
}

// ClientParams defines the dependencies of the client.
type ClientParams struct {
	fx.In

	Lifecycle    fx.Lifecycle
	Configurator *fairrpcconfig.Configurator
	Config       fairrpcconfig.Config
}

// ClientResult defines the values produced by NewClient.
type ClientResult struct {
	fx.Out

	Client *client.Client
}

// NewClient produces a client that is stopped with the application.
func NewClient(p ClientParams) (ClientResult, error) {
	c, err := p.Configurator.NewClient(p.Config.Client)
	if err != nil {
		return ClientResult{}, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return c.Stop()
		},
	})
	return ClientResult{Client: c}, nil
}
