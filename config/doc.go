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

// Package config describes how name resolution is configured.
//
// A configuration is usually parsed from a short directive held in an
// environment variable, for example:
//
//	std:threads=8:poll_ivl=5
//
// The directive is a comma-separated list of route entries. Each entry is a
// route name followed by colon-separated key=value options. The only route
// kind today is "std", which resolves names with the Go standard library
// resolver on a pool of worker goroutines and polls it on an interval to
// provide updates. Its options are:
//
//   - threads: number of worker goroutines (default 4)
//   - poll_ivl: seconds between polls of a subscribed name (default 1)
//
// Parsing never fails. Anything that is not understood is ignored and the
// corresponding setting keeps its default, so a typo in the environment
// can't prevent a process from starting. [ParseStrict] returns the same
// configuration together with a description of everything that was ignored.
package config
