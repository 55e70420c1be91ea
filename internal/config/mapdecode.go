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

// Package config decodes configuration maps into structs tagged with
// `config`, interpolating variables into fields that ask for it.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/uber-go/mapdecode"
)

const (
	_tagName           = "config"
	_interpolateOption = "interpolate"
)

// VariableResolver resolves the value of a variable named in an
// interpolated string. ok reports whether the variable has a value.
type VariableResolver func(name string) (value string, ok bool)

// DecodeInto will decode the src's data into the dst interface.
func DecodeInto(dst interface{}, src interface{}, opts ...mapdecode.Option) error {
	opts = append(opts, mapdecode.TagName(_tagName))
	return mapdecode.Decode(dst, src, opts...)
}

// InterpolateWith is a MapDecode option that will read a structField's tag
// information, and if the `interpolate` option is set, it will use the
// resolver to alter data as it's being decoded into the struct.
func InterpolateWith(resolver VariableResolver) mapdecode.Option {
	return mapdecode.FieldHook(func(dest reflect.StructField, srcData reflect.Value) (reflect.Value, error) {
		shouldInterpolate := false

		options := strings.Split(dest.Tag.Get(_tagName), ",")[1:]
		for _, option := range options {
			if option == _interpolateOption {
				shouldInterpolate = true
				break
			}
		}

		if !shouldInterpolate {
			return srcData, nil
		}

		// Use Interface().(string) so that we handle the case where data is an
		// interface{} holding a string.
		v, ok := srcData.Interface().(string)
		if !ok {
			// An integer field may be marked as interpolatable and still
			// receive an integer.
			return srcData, nil
		}

		newV, err := Interpolate(v, resolver)
		if err != nil {
			return srcData, err
		}
		return reflect.ValueOf(newV), nil
	})
}

// Interpolate replaces ${NAME} and ${NAME:default} in s with the value of
// NAME, or the default if NAME has no value.
func Interpolate(s string, resolve VariableResolver) (string, error) {
	for rest := s; ; {
		i := strings.Index(rest, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(rest[i:], '}')
		if j < 0 {
			return "", fmt.Errorf("failed to parse %q for interpolation: unterminated variable", s)
		}
		rest = rest[i+j+1:]
	}

	var missing []string
	out := os.Expand(s, func(v string) string {
		name, def, hasDefault := v, "", false
		if i := strings.IndexByte(v, ':'); i >= 0 {
			name, def, hasDefault = v[:i], v[i+1:], true
		}
		if value, ok := resolve(name); ok {
			return value
		}
		if !hasDefault {
			missing = append(missing, name)
		}
		return def
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("failed to render %q with environment variables: no value for %q", s, missing)
	}
	return out, nil
}

// EnvResolver resolves variables from the process environment.
func EnvResolver(name string) (string, bool) {
	return os.LookupEnv(name)
}
