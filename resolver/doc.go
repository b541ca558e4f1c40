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

// Package resolver provides functionality for name resolution.
// Name resolution is the process of resolving a host name into one or
// more addresses.
//
// It contains the core interface ([Resolver]) for continuous resolution:
// a caller subscribes to a name with a [Receiver] and is told about the
// current set of addresses, and again each time that set changes, until it
// closes the subscription.
//
// # Blocking Backends
//
// Many ways of resolving names, including the system resolver, can only
// answer one query at a time and block while doing so. Such a backend is
// described by the [ResolveProber] interface; [NewStdProber] provides one
// backed by a [net.Resolver].
//
// Probers are not called directly by subscriptions. Instead, an [Executor]
// (such as the worker pool in package pool) runs them on a fixed set of
// goroutines, and an [IntervalResolver] repeats resolves through the
// executor on an interval. This bounds the number of concurrent blocking
// calls no matter how many names are subscribed, and keeps the goroutines
// that manage subscriptions free of blocking calls.
//
// # Decorators
//
// A Receiver can be decorated to transform the addresses it receives.
// [WithDefaultPort] is such a decorator: it adds a port to every address
// that was resolved without one.
package resolver
