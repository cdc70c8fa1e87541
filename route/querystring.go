// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package route

import "net/url"

// ArrayFormat controls how array-valued query parameters are encoded.
type ArrayFormat string

const (
	ArrayFormatNone     ArrayFormat = "none"
	ArrayFormatBrackets ArrayFormat = "brackets"
	ArrayFormatIndex    ArrayFormat = "index"
	ArrayFormatComma    ArrayFormat = "comma"
)

// BooleanFormat controls how boolean-valued query parameters are encoded.
type BooleanFormat string

const (
	BooleanFormatNone       BooleanFormat = "none"
	BooleanFormatString     BooleanFormat = "string"
	BooleanFormatEmptyTrue  BooleanFormat = "empty-true"
)

// NullFormat controls how nil-valued query parameters are encoded.
type NullFormat string

const (
	NullFormatDefault NullFormat = "default"
	NullFormatHidden  NullFormat = "hidden"
)

// QueryCodecOptions configures a QueryCodec.Build/Parse call (spec §6).
type QueryCodecOptions struct {
	ArrayFormat   ArrayFormat
	BooleanFormat BooleanFormat
	NullFormat    NullFormat
}

// QueryCodec is the query-string codec collaborator. Its exact encoding
// rules are explicitly out of scope for this system (spec §1); callers may
// plug in any implementation satisfying this interface. DefaultQueryCodec
// below is a reasonable net/url-backed default, not a canonical one.
type QueryCodec interface {
	Build(params map[string]any, opts QueryCodecOptions) string
	Parse(query string, opts QueryCodecOptions) map[string]string
}

// DefaultQueryCodec is a minimal QueryCodec built on net/url. It supports
// scalar string/bool/nil values; ArrayFormat beyond "none" and richer
// collection encodings are left to a host-supplied QueryCodec.
type DefaultQueryCodec struct{}

func (DefaultQueryCodec) Build(params map[string]any, opts QueryCodecOptions) string {
	values := url.Values{}
	for k, v := range params {
		if v == nil {
			if opts.NullFormat == NullFormatHidden {
				continue
			}
			values.Set(k, "")
			continue
		}
		switch val := v.(type) {
		case string:
			values.Set(k, val)
		case bool:
			switch opts.BooleanFormat {
			case BooleanFormatEmptyTrue:
				if val {
					values.Set(k, "")
				}
			case BooleanFormatString, BooleanFormatNone, "":
				if val {
					values.Set(k, "true")
				} else {
					values.Set(k, "false")
				}
			}
		default:
			values.Set(k, toString(val))
		}
	}
	return values.Encode()
}

func (DefaultQueryCodec) Parse(query string, _ QueryCodecOptions) map[string]string {
	out := map[string]string{}
	if query == "" {
		return out
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return out
	}
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		} else {
			out[k] = ""
		}
	}
	return out
}

func toString(v any) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return ""
}
