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

// Package nsenv provides name resolution configured through an
// environment variable.
//
// Applications call [Init] once at startup and use the returned
// [router.Router] for every name they need to resolve:
//
//	ns, err := nsenv.Init()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ns.Close()
//	addr, err := ns.ResolveOnce(ctx, "example.com", 80)
//
// The configuration is read from the RUST_NS environment variable (see
// [WithEnvVar] to use another one), using the directive grammar described
// in package config, for example "std:threads=8:poll_ivl=5". When the
// variable is unset or empty, built-in defaults apply; [InitDefault] lets
// the application choose other defaults, and [ForceConfig] ignores the
// environment altogether. A directive never prevents startup: whatever is
// not understood is ignored and logged as a warning.
//
// # Default Behavior
//
// The only kind of route today is "std". It resolves names with the Go
// standard library resolver, which blocks, so resolves are run on a fixed
// pool of worker goroutines (4 by default). Subscriptions made with
// [router.Router.ResolveAuto] poll the name on an interval (1 second by
// default) and are only notified when the set of addresses changes, or
// when a resolve fails.
//
// The router, its worker pool and all of its subscriptions are torn down
// together by [router.Router.Close].
package nsenv
