// Copyright 2023-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ErrAnomaly is wrapped by every error reported by [ParseStrict].
var ErrAnomaly = errors.New("ignored configuration")

// maxPollSeconds keeps poll_ivl representable as a time.Duration.
const maxPollSeconds = 1<<32 - 1

// Parse parses a resolver directive. It is a total function: every input,
// including the empty string and garbage, yields a valid Config. Unknown
// route names, unknown options and values that do not parse as positive
// integers are ignored.
//
// Both "" and "std" yield [Default].
func Parse(directive string) Config {
	return parse(directive, func(error) {})
}

// ParseStrict parses a resolver directive exactly like [Parse] and also
// returns an error describing everything that was ignored, or nil if the
// whole directive was understood. The returned Config is always usable.
func ParseStrict(directive string) (Config, error) {
	var errs *multierror.Error
	cfg := parse(directive, func(err error) {
		errs = multierror.Append(errs, err)
	})
	return cfg, errs.ErrorOrNil()
}

func parse(directive string, report func(error)) Config {
	cfg := Default()
	if directive == "" {
		return cfg
	}
	for _, entry := range strings.Split(directive, ",") {
		head, options, _ := strings.Cut(entry, ":")
		name, sub, isSub := strings.Cut(head, "=")
		if isSub {
			report(fmt.Errorf("%w: route %q: sub-resolver %q is not supported", ErrAnomaly, name, sub))
			continue
		}
		switch name {
		case "std":
			cfg.fallthroughRoute = parseStd(options, report)
		default:
			report(fmt.Errorf("%w: unknown route %q", ErrAnomaly, name))
		}
	}
	return cfg
}

func parseStd(options string, report func(error)) Std {
	std := NewStd()
	if options == "" {
		return std
	}
	for _, pair := range strings.Split(options, ":") {
		key, value, hasValue := strings.Cut(pair, "=")
		switch {
		case key == "threads" && hasValue:
			threads, err := strconv.ParseUint(value, 10, 31)
			if err != nil || threads == 0 {
				report(fmt.Errorf("%w: std: threads=%q is not a positive integer", ErrAnomaly, value))
				continue
			}
			std.threads = int(threads)
		case key == "poll_ivl" && hasValue:
			secs, err := strconv.ParseUint(value, 10, 64)
			if err != nil || secs == 0 || secs > maxPollSeconds {
				report(fmt.Errorf("%w: std: poll_ivl=%q is not a positive number of seconds", ErrAnomaly, value))
				continue
			}
			std.pollInterval = time.Duration(secs) * time.Second
		default:
			report(fmt.Errorf("%w: std: unknown option %q", ErrAnomaly, pair))
		}
	}
	return std
}
