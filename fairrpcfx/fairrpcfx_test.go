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

package fairrpcfx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fairrpc/api/service"
	"go.uber.org/fairrpc/client"
	"go.uber.org/fairrpc/fairrpcconfig"
	"go.uber.org/fairrpc/internal/testservice"
	"go.uber.org/fairrpc/server"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type serviceResult struct {
	fx.Out

	Service service.Service `group:"fairrpcfx"`
}

func testConfig() fairrpcconfig.Config {
	return fairrpcconfig.Config{
		Server: fairrpcconfig.ServerConfig{
			Address:  "127.0.0.1:0",
			Handlers: 2,
		},
		Client: fairrpcconfig.ClientConfig{
			Identity:   "alice",
			RPCTimeout: 5 * time.Second,
		},
	}
}

func TestModule(t *testing.T) {
	h := &testservice.Handler{}
	var (
		srv *server.Server
		cl  *client.Client
	)
	app := fxtest.New(t,
		fx.Provide(
			func() *zap.Logger { return zaptest.NewLogger(t) },
			func() fairrpcconfig.Config { return testConfig() },
			func() serviceResult { return serviceResult{Service: h.Service()} },
		),
		Module,
		fx.Populate(&srv, &cl),
	)
	app.RequireStart()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tc := testservice.NewClient(cl.Proxy(srv.Addr().String(), testservice.Name, testservice.Version))
	who, err := tc.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", who)

	app.RequireStop()
	assert.Equal(t, 0, srv.NumOpenConnections())
	assert.Equal(t, 0, cl.NumConnections())
}

func TestNewServerErrors(t *testing.T) {
	_, err := NewServer(ServerParams{
		Configurator: NewConfigurator(ConfiguratorParams{}),
		Config:       testConfig(),
	})
	require.Error(t, err, "no services")
}

func TestNewClient(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	res, err := NewClient(ClientParams{
		Lifecycle:    lc,
		Configurator: NewConfigurator(ConfiguratorParams{Logger: zaptest.NewLogger(t)}),
		Config:       testConfig(),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Client)
	lc.RequireStart().RequireStop()

	cfg := testConfig()
	cfg.Client.ConnectRetries = -1
	_, err = NewClient(ClientParams{
		Lifecycle:    fxtest.NewLifecycle(t),
		Configurator: NewConfigurator(ConfiguratorParams{}),
		Config:       cfg,
	})
	assert.Error(t, err)
}
