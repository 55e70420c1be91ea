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

package fairrpcerrors

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// CodeOK means no error.
	CodeOK Code = 0

	// CodeCancelled means the caller gave up on the call, typically because
	// its context was cancelled while it waited for a response.
	CodeCancelled Code = 1

	// CodeUnknown means the server failed with an error it could not
	// classify. Application errors that are not a *Status carry this code.
	CodeUnknown Code = 2

	// CodeInvalidArgument means the request could not be decoded.
	CodeInvalidArgument Code = 3

	// CodeDeadlineExceeded means no response arrived within the effective
	// timeout. The server may still be working on the call.
	CodeDeadlineExceeded Code = 4

	// CodeNotFound means some requested entity was not found.
	CodeNotFound Code = 5

	// CodeAlreadyExists means the entity a client attempted to create already
	// exists.
	CodeAlreadyExists Code = 6

	// CodePermissionDenied means the authorizer refused the caller access to
	// the service.
	CodePermissionDenied Code = 7

	// CodeResourceExhausted means the server refused to admit the call,
	// either because the call queue was full or because the scheduler asked
	// the caller to back off. The call had no side effects and may be
	// retried, possibly against another server.
	CodeResourceExhausted Code = 8

	// CodeFailedPrecondition means the operation was rejected because the
	// system is not in a state required for its execution, for example a
	// protocol version mismatch.
	CodeFailedPrecondition Code = 9

	// CodeAborted means the operation was aborted, typically due to a
	// concurrency issue.
	CodeAborted Code = 10

	// CodeOutOfRange means the operation was attempted past the valid range.
	CodeOutOfRange Code = 11

	// CodeUnimplemented means the service or method is not registered with
	// the server.
	CodeUnimplemented Code = 12

	// CodeInternal means an invariant of the server was broken, such as a
	// panicking handler.
	CodeInternal Code = 13

	// CodeUnavailable means the connection failed or the server is stopping.
	CodeUnavailable Code = 14

	// CodeDataLoss means unrecoverable data loss or corruption.
	CodeDataLoss Code = 15

	// CodeUnauthenticated means the caller did not identify itself.
	CodeUnauthenticated Code = 16
)

var (
	_codeToString = map[Code]string{
		CodeOK:                 "ok",
		CodeCancelled:          "cancelled",
		CodeUnknown:            "unknown",
		CodeInvalidArgument:    "invalid-argument",
		CodeDeadlineExceeded:   "deadline-exceeded",
		CodeNotFound:           "not-found",
		CodeAlreadyExists:      "already-exists",
		CodePermissionDenied:   "permission-denied",
		CodeResourceExhausted:  "resource-exhausted",
		CodeFailedPrecondition: "failed-precondition",
		CodeAborted:            "aborted",
		CodeOutOfRange:         "out-of-range",
		CodeUnimplemented:      "unimplemented",
		CodeInternal:           "internal",
		CodeUnavailable:        "unavailable",
		CodeDataLoss:           "data-loss",
		CodeUnauthenticated:    "unauthenticated",
	}
	_stringToCode = make(map[string]Code, len(_codeToString))
)

func init() {
	for c, s := range _codeToString {
		_stringToCode[s] = c
	}
}

// Code classifies the failure of a call. Codes travel on the wire as
// varints, so their numeric values are stable.
type Code int

// String returns the string representation of the Code.
func (c Code) String() string {
	if s, ok := _codeToString[c]; ok {
		return s
	}
	return strconv.Itoa(int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Code) MarshalText() ([]byte, error) {
	if s, ok := _codeToString[c]; ok {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("unknown code: %d", int(c))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Code) UnmarshalText(text []byte) error {
	i, ok := _stringToCode[strings.ToLower(string(text))]
	if !ok {
		return fmt.Errorf("unknown code string: %s", string(text))
	}
	*c = i
	return nil
}
