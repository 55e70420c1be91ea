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

// FaultType tells which side of a call is responsible for an error.
type FaultType int

const (
	// UnknownFault is returned for nil errors and unclassified codes.
	UnknownFault FaultType = iota
	// ClientFault means the caller should change something before retrying.
	ClientFault
	// ServerFault means the server failed or refused work it could not take.
	ServerFault
)

// IsRetriable reports whether err is an admission rejection: the server
// refused the call before running it, because its queue was full or its
// scheduler asked the caller to back off. Such calls had no side effects and
// may be resubmitted, here or elsewhere.
//
// Every other error, including application errors, is terminal.
func IsRetriable(err error) bool {
	return err != nil && FromError(err).Code() == CodeResourceExhausted
}

// GetFaultTypeFromError classifies err by fault. A nil error is UnknownFault.
func GetFaultTypeFromError(err error) FaultType {
	if err == nil {
		return UnknownFault
	}
	return GetFaultTypeFromCode(FromError(err).Code())
}

// GetFaultTypeFromCode classifies a code by fault.
func GetFaultTypeFromCode(code Code) FaultType {
	switch code {
	case CodeCancelled,
		CodeInvalidArgument,
		CodeNotFound,
		CodeAlreadyExists,
		CodePermissionDenied,
		CodeFailedPrecondition,
		CodeAborted,
		CodeOutOfRange,
		CodeUnimplemented,
		CodeUnauthenticated:
		return ClientFault

	case CodeUnknown,
		CodeDeadlineExceeded,
		CodeResourceExhausted,
		CodeInternal,
		CodeUnavailable,
		CodeDataLoss:
		return ServerFault
	}
	return UnknownFault
}
