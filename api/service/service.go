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

// Package service describes what a fairrpc server exposes: named services
// made of methods, and the policy deciding who may call them.
package service

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// Method handles one call. body is the encoded request; the returned bytes
// are the encoded response.
//
// Errors built with fairrpcerrors keep their code on the wire. Any other
// error reaches the caller with CodeUnknown, named after its Go type.
type Method func(ctx context.Context, body []byte) ([]byte, error)

// Service is a named, versioned set of methods.
type Service struct {
	Name string

	// Version must match the version announced by clients.
	Version uint64

	Methods map[string]Method
}

// Validate checks that the service can be served.
func (s Service) Validate() (err error) {
	if s.Name == "" {
		err = multierr.Append(err, fmt.Errorf("service name is required"))
	}
	if len(s.Methods) == 0 {
		err = multierr.Append(err, fmt.Errorf("service %q has no methods", s.Name))
	}
	for name, m := range s.Methods {
		if name == "" {
			err = multierr.Append(err, fmt.Errorf("service %q has a method with no name", s.Name))
		}
		if m == nil {
			err = multierr.Append(err, fmt.Errorf("method %q of service %q is nil", name, s.Name))
		}
	}
	return err
}

// Codec encodes request and response bodies.
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}
