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

package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/bufbuild/nsenv/config"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, config.Default(), config.Parse(""))
	assert.Equal(t, config.Default(), config.Parse("std"))
	assert.Equal(t, config.Default(), config.Parse("std:"))

	std, ok := config.Default().Fallthrough().(config.Std)
	require.True(t, ok)
	assert.Equal(t, time.Second, std.PollInterval())
	assert.Equal(t, 4, std.Threads())
}

func TestParseStd(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		directive string
		expected  config.Config
	}{
		{
			directive: "std:poll_ivl=2",
			expected: config.New(config.WithFallthrough(
				config.NewStd(config.WithPollInterval(2 * time.Second)),
			)),
		},
		{
			directive: "std:threads=7",
			expected: config.New(config.WithFallthrough(
				config.NewStd(config.WithThreads(7)),
			)),
		},
		{
			directive: "std:threads=1:poll_ivl=7",
			expected: config.New(config.WithFallthrough(
				config.NewStd(config.WithThreads(1), config.WithPollInterval(7*time.Second)),
			)),
		},
		{
			// last std entry wins
			directive: "std:threads=3,std:poll_ivl=9",
			expected: config.New(config.WithFallthrough(
				config.NewStd(config.WithPollInterval(9 * time.Second)),
			)),
		},
		{
			directive: "consul,std:threads=2",
			expected: config.New(config.WithFallthrough(
				config.NewStd(config.WithThreads(2)),
			)),
		},
		{
			directive: "std:threads=2:color=blue",
			expected: config.New(config.WithFallthrough(
				config.NewStd(config.WithThreads(2)),
			)),
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.directive, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, testCase.expected, config.Parse(testCase.directive))
		})
	}
}

func TestParseIgnoresGarbage(t *testing.T) {
	t.Parallel()

	for _, directive := range []string{
		"std:threads=abc",
		"std:threads=0",
		"std:threads=-3",
		"std:threads=99999999999999999999",
		"std:poll_ivl=0",
		"std:poll_ivl=1.5",
		"std:poll_ivl=",
		"std:threads",
		"std=threaded:threads=9",
		"dns",
		"dns:threads=9",
		",,,",
		"::::",
		"std :threads=9",
		"\x00\xff",
	} {
		assert.Equal(t, config.Default(), config.Parse(directive), "directive %q", directive)
	}
}

func TestParseStrict(t *testing.T) {
	t.Parallel()

	cfg, err := config.ParseStrict("std:threads=2:poll_ivl=3")
	require.NoError(t, err)
	assert.Equal(t, config.Parse("std:threads=2:poll_ivl=3"), cfg)

	cfg, err = config.ParseStrict("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	cfg, err = config.ParseStrict("std:thread=2:poll_ivl=x,consul,std=threaded")
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrAnomaly))
	assert.Equal(t, config.Default(), cfg)
	var multiErr *multierror.Error
	require.ErrorAs(t, err, &multiErr)
	assert.Len(t, multiErr.Errors, 4)
	for _, anomaly := range multiErr.Errors {
		assert.ErrorIs(t, anomaly, config.ErrAnomaly)
	}
}

func TestStdOptions(t *testing.T) {
	t.Parallel()

	std := config.NewStd(config.WithThreads(0), config.WithPollInterval(-time.Second))
	assert.Equal(t, config.NewStd(), std)

	std = config.NewStd(config.WithThreads(16), config.WithPollInterval(1500*time.Millisecond))
	assert.Equal(t, 16, std.Threads())
	assert.Equal(t, 1500*time.Millisecond, std.PollInterval())
	assert.Equal(t, "std:threads=16:poll_ivl=2", std.String())

	assert.Equal(t, config.Default(), config.New(config.WithFallthrough(nil)))
	assert.Equal(t, config.NewStd(), config.Config{}.Fallthrough())
}

func TestRouteKinds(t *testing.T) {
	t.Parallel()

	routes := []config.Route{config.NewStd(), config.Unknown{Name: "consul"}}
	var kinds []string
	for _, route := range routes {
		switch route := route.(type) {
		case config.Std:
			kinds = append(kinds, "std/"+route.Kind())
		case config.Unknown:
			kinds = append(kinds, "unknown/"+route.Kind())
		default:
			t.Fatalf("unexpected route %T", route)
		}
	}
	assert.Equal(t, []string{"std/std", "unknown/consul"}, kinds)
}

func FuzzParse(f *testing.F) {
	for _, seed := range []string{
		"",
		"std",
		"std:poll_ivl=2",
		"std:threads=7",
		"std:threads=1:poll_ivl=7",
		"std=sub:threads=1",
		"foo:bar=baz,std:threads=x",
		"std:poll_ivl=18446744073709551615",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, directive string) {
		cfg := config.Parse(directive)
		std, ok := cfg.Fallthrough().(config.Std)
		require.True(t, ok)
		assert.GreaterOrEqual(t, std.Threads(), 1)
		assert.Greater(t, std.PollInterval(), time.Duration(0))

		strict, _ := config.ParseStrict(directive)
		assert.Equal(t, cfg, strict)

		// Rendering and parsing again is lossless.
		assert.Equal(t, cfg, config.Parse(cfg.String()))
	})
}
