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

package picker

import (
	"errors"

	"github.com/bufbuild/nsenv/resolver"
)

// ErrNoAddresses is returned by pickers given an empty address set.
var ErrNoAddresses = errors.New("no addresses to pick from")

// Picker implements address selection. Implementations must be safe for
// concurrent use.
type Picker interface {
	// Pick returns one of the given addresses, or ErrNoAddresses if there
	// are none.
	Pick(addresses []resolver.Address) (resolver.Address, error)
}

// First is a picker that always picks the first address, keeping the order
// chosen by the resolver.
//
//nolint:gochecknoglobals
var First Picker = pickerFunc(func(addresses []resolver.Address) (resolver.Address, error) {
	if len(addresses) == 0 {
		return resolver.Address{}, ErrNoAddresses
	}
	return addresses[0], nil
})

type pickerFunc func(addresses []resolver.Address) (resolver.Address, error)

func (f pickerFunc) Pick(addresses []resolver.Address) (resolver.Address, error) {
	return f(addresses)
}
