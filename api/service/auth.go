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

package service

import (
	"strings"

	"go.uber.org/fairrpc/fairrpcerrors"
)

// Authorizer decides whether an identity may call a service.
type Authorizer interface {
	// Authorize returns nil to allow the call. Errors that are not already
	// a PermissionDenied status are reported as one.
	Authorize(identity, service string) error
}

// AuthorizerFunc adapts a function into an Authorizer.
type AuthorizerFunc func(identity, service string) error

// Authorize calls f.
func (f AuthorizerFunc) Authorize(identity, service string) error {
	return f(identity, service)
}

// AllowAll lets everyone in.
var AllowAll Authorizer = AuthorizerFunc(func(string, string) error { return nil })

// ACL is an allow-list of identities.
type ACL struct {
	all   bool
	users map[string]struct{}
}

// NewACL parses an allow-list: "*" allows everyone, otherwise a comma
// separated list of identities. An empty list allows no one.
func NewACL(spec string) *ACL {
	acl := &ACL{users: make(map[string]struct{})}
	for _, u := range strings.Split(spec, ",") {
		u = strings.TrimSpace(u)
		switch u {
		case "":
		case "*":
			acl.all = true
		default:
			acl.users[u] = struct{}{}
		}
	}
	return acl
}

// Authorize implements Authorizer.
func (a *ACL) Authorize(identity, service string) error {
	if a.all {
		return nil
	}
	if _, ok := a.users[identity]; ok {
		return nil
	}
	return fairrpcerrors.PermissionDeniedErrorf("user %q is not authorized for service %q", identity, service)
}

// Denied converts an authorization failure into the status reported to the
// caller.
func Denied(identity, service string, err error) error {
	if fairrpcerrors.IsPermissionDenied(err) {
		return err
	}
	return fairrpcerrors.PermissionDeniedErrorf("user %q is not authorized for service %q: %v", identity, service, err)
}
