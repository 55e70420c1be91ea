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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	env := mapVariableResolver(map[string]string{
		"HOST":  "10.0.0.1",
		"PORT":  "8000",
		"EMPTY": "",
	})

	tests := []struct {
		give    string
		want    string
		wantErr string
	}{
		{give: "plain", want: "plain"},
		{give: "${HOST}:${PORT}", want: "10.0.0.1:8000"},
		{give: "${HOST}:${PORT:9000}", want: "10.0.0.1:8000"},
		{give: "${MISSING:127.0.0.1}:${PORT}", want: "127.0.0.1:8000"},
		{give: "[${EMPTY:fallback}]", want: "[]"},
		{give: "1${MISSING:}5", want: "15"},
		{give: "${MISSING}", wantErr: `no value for ["MISSING"]`},
		{give: "${HOST", wantErr: "unterminated variable"},
	}

	for _, tt := range tests {
		t.Run(tt.give, func(t *testing.T) {
			got, err := Interpolate(tt.give, env)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeInto(t *testing.T) {
	type ping struct {
		Enabled  *bool         `config:"enabled"`
		Interval time.Duration `config:"interval"`
	}
	type settings struct {
		Address     string          `config:"address,interpolate"`
		Handlers    int             `config:"handlers,interpolate"`
		MaxIdleTime time.Duration   `config:"maxIdleTime,interpolate"`
		Thresholds  []time.Duration `config:"thresholds"`
		Ping        ping            `config:"ping"`

		// Not interpolated.
		Identity string `config:"identity"`
	}

	yes := true
	tests := []struct {
		desc string
		give interface{}
		env  map[string]string

		want       settings
		wantErrors []string
	}{
		{
			desc: "plain values",
			give: map[string]interface{}{
				"address":     "127.0.0.1:8000",
				"handlers":    4,
				"maxIdleTime": "20s",
				"thresholds":  []interface{}{"10ms", "1s"},
				"ping":        map[string]interface{}{"enabled": true, "interval": "1m"},
			},
			want: settings{
				Address:     "127.0.0.1:8000",
				Handlers:    4,
				MaxIdleTime: 20 * time.Second,
				Thresholds:  []time.Duration{10 * time.Millisecond, time.Second},
				Ping:        ping{Enabled: &yes, Interval: time.Minute},
			},
		},
		{
			desc: "interpolated values",
			give: map[interface{}]interface{}{
				"address":     "${HOST:localhost}:${PORT}",
				"handlers":    "${HANDLERS:8}",
				"maxIdleTime": "5${UNIT:s}",
			},
			env: map[string]string{"PORT": "9000", "UNIT": "m"},
			want: settings{
				Address:     "localhost:9000",
				Handlers:    8,
				MaxIdleTime: 5 * time.Minute,
			},
		},
		{
			desc: "uninterpolated field",
			give: map[string]interface{}{"identity": "${USER}"},
			env:  map[string]string{"USER": "alice"},
			want: settings{Identity: "${USER}"},
		},
		{
			desc:       "missing variable",
			give:       map[string]interface{}{"address": "${HOST}:8000"},
			wantErrors: []string{`failed to render "${HOST}:8000" with environment variables`},
		},
		{
			desc:       "bad duration",
			give:       map[string]interface{}{"maxIdleTime": "forever"},
			wantErrors: []string{"forever"},
		},
		{
			desc:       "unknown key",
			give:       map[string]interface{}{"handlres": 4},
			wantErrors: []string{"handlres"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var dest settings
			err := DecodeInto(&dest, tt.give, InterpolateWith(mapVariableResolver(tt.env)))

			if len(tt.wantErrors) > 0 {
				require.Error(t, err)
				for _, msg := range tt.wantErrors {
					assert.Contains(t, err.Error(), msg)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, dest)
		})
	}
}

func TestEnvResolver(t *testing.T) {
	_, ok := EnvResolver("FAIRRPC_CONFIG_TEST_UNSET_VARIABLE")
	assert.False(t, ok)
}

func mapVariableResolver(m map[string]string) VariableResolver {
	return func(name string) (value string, ok bool) {
		value, ok = m[name]
		return
	}
}
